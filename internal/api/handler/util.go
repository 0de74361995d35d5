package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/ayo6706/parimutuel-markets/internal/api/middleware"
	"github.com/ayo6706/parimutuel-markets/internal/api/problem"
	"github.com/ayo6706/parimutuel-markets/internal/domain"
	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// decodeBody decodes a JSON body into dst and runs struct validation.
// It writes the problem response itself and reports whether to continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		problem.WriteInvalidParams(w, r, "request failed validation", invalidParams(err))
		return false
	}
	return true
}

func invalidParams(err error) []problem.InvalidParam {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	params := make([]problem.InvalidParam, 0, len(verrs))
	for _, fe := range verrs {
		reason := fe.Tag()
		if fe.Param() != "" {
			reason = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		params = append(params, problem.InvalidParam{Name: fe.Field(), Reason: reason})
	}
	return params
}

// parseAmount converts a decimal amount such as "12.5" into micros.
func parseAmount(w http.ResponseWriter, r *http.Request, raw string) (int64, bool) {
	amount, err := domain.ParseAmount(raw)
	if err != nil || amount <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount must be a positive number with at most 6 decimal places")
		return 0, false
	}
	return amount, true
}

func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func requestActor(r *http.Request) (uuid.UUID, bool, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, false, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false, errors.New("invalid user_id in auth context")
	}

	return actorID, middleware.UserRoleFromContext(r.Context()) == domain.RoleAdmin, nil
}

// mustActor resolves the caller or writes a 401.
func mustActor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return uuid.Nil, false
	}
	return actorID, true
}

type serviceProblem struct {
	status int
	slug   string
}

var serviceProblems = []struct {
	err error
	serviceProblem
}{
	{service.ErrMarketNotFound, serviceProblem{http.StatusNotFound, "market/not-found"}},
	{service.ErrUserNotFound, serviceProblem{http.StatusNotFound, "user/not-found"}},
	{service.ErrWalletNotFound, serviceProblem{http.StatusNotFound, "wallet/not-found"}},
	{service.ErrInvalidOutcome, serviceProblem{http.StatusBadRequest, "settlement/invalid-outcome"}},
	{service.ErrMarketAlreadySettled, serviceProblem{http.StatusBadRequest, "settlement/already-settled"}},
	{service.ErrNoWinningStake, serviceProblem{http.StatusBadRequest, "settlement/no-winning-stake"}},
	{service.ErrPoolInconsistent, serviceProblem{http.StatusBadRequest, "settlement/pool-inconsistent"}},
	{service.ErrMarketNotActive, serviceProblem{http.StatusConflict, "market/not-active"}},
	{service.ErrInvalidTransition, serviceProblem{http.StatusConflict, "market/invalid-transition"}},
	{service.ErrInvalidStatus, serviceProblem{http.StatusBadRequest, "market/invalid-status"}},
	{service.ErrInvalidMarket, serviceProblem{http.StatusBadRequest, "market/invalid"}},
	{service.ErrInvalidAmount, serviceProblem{http.StatusBadRequest, "request/invalid-amount"}},
	{service.ErrInvalidUser, serviceProblem{http.StatusBadRequest, "user/invalid"}},
	{service.ErrUsernameTaken, serviceProblem{http.StatusConflict, "user/already-exists"}},
	{models.ErrInsufficientFunds, serviceProblem{http.StatusUnprocessableEntity, "wallet/insufficient-funds"}},
}

// respondServiceError maps service errors onto problem responses. Storage
// details are logged, never returned to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, sp := range serviceProblems {
		if errors.Is(err, sp.err) {
			RespondError(w, r, sp.status, sp.slug, err.Error())
			return
		}
	}
	if status, pType, msg, ok := mapDBError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	if errors.Is(err, service.ErrStorageFailure) {
		zap.L().Warn(op+" failed", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
		w.Header().Set("Retry-After", "1")
		RespondError(w, r, http.StatusServiceUnavailable, "storage/unavailable", "temporarily unavailable, retry the request")
		return
	}
	zap.L().Error(op+" failed", zap.Error(err), zap.String("trace_id", middleware.TraceIDFromContext(r.Context())))
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
