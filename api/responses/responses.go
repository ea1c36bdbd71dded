package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/types"
	zlog "github.com/rs/zerolog/log"
)

// fallbackBody is written when an envelope cannot be marshalled.
var fallbackBody = []byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}` + "\n")

func WriteSuccess(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, types.OK(data))
}

func WriteCreated(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, types.OK(data))
}

// WriteError renders err as the failure envelope. Server-side codes are shown with their
// public message; client codes keep the service's wording.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	code := typed.Code()
	meta := pkgerrors.MetadataFor(code)

	msg := meta.PublicMessage
	if m := typed.Message(); m != "" && pkgerrors.IsClientCode(code) {
		msg = m
	}
	var details any
	if meta.DetailsAllowed {
		details = typed.Details()
	}

	if logg != nil {
		logError(ctx, logg, err, meta.HTTPStatus)
	}
	write(w, meta.HTTPStatus, types.Fail(string(code), msg, details))
}

func logError(ctx context.Context, logg *logger.Logger, err error, status int) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"status":      status,
		"timeout":     dump.Timeout,
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_class"] = dump.PGClass
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_table"] = dump.PGTable
		fields["pg_column"] = dump.PGColumn
		fields["pg_detail"] = dump.PGDetail
		fields["pg_message"] = dump.PGMessage
	}

	ctx = logg.WithFields(ctx, fields)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

func write(w http.ResponseWriter, status int, env types.Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		zlog.Error().Err(err).Int("status", status).Msg("response.encode.failed")
		status, body = http.StatusInternalServerError, fallbackBody
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
