package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// StoreFault describes a failure reported by the backing snapshot store.
type StoreFault struct {
	Backend    string `json:"backend"`
	Code       string `json:"code,omitempty"`
	Table      string `json:"table,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

type ErrorDump struct {
	TopMessage string      `json:"top_message"`
	Code       Code        `json:"code,omitempty"`
	Chain      []string    `json:"chain,omitempty"`
	Deadline   bool        `json:"deadline,omitempty"`
	Canceled   bool        `json:"canceled,omitempty"`
	Store      *StoreFault `json:"store,omitempty"`
}

// Dump flattens an error chain for structured logs.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
		Deadline:   errors.Is(err, context.DeadlineExceeded),
		Canceled:   errors.Is(err, context.Canceled),
		Store:      storeFault(err),
	}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields renders the dump as log fields. Empty facts are left out.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.Deadline {
		fields["deadline_exceeded"] = true
	}
	if d.Canceled {
		fields["canceled"] = true
	}
	if s := d.Store; s != nil {
		fields["store_backend"] = s.Backend
		if s.Code != "" {
			fields["store_code"] = s.Code
		}
		if s.Table != "" {
			fields["store_table"] = s.Table
		}
		if s.Constraint != "" {
			fields["store_constraint"] = s.Constraint
		}
		if s.Detail != "" {
			fields["store_detail"] = s.Detail
		}
		fields["store_message"] = s.Message
	}
	return fields
}

func storeFault(err error) *StoreFault {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StoreFault{
			Backend:    "postgres",
			Code:       pgErr.Code,
			Table:      pgErr.TableName,
			Constraint: pgErr.ConstraintName,
			Detail:     pgErr.Detail,
			Message:    pgErr.Message,
		}
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) && !errors.Is(err, redis.Nil) {
		return &StoreFault{Backend: "redis", Message: redisErr.Error()}
	}
	return nil
}
