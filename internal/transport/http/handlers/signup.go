package http_handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/baechuer/pension-service/internal/application/signup"
	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/transport/http/dto"
	"github.com/baechuer/pension-service/internal/transport/http/middleware"
	"github.com/baechuer/pension-service/internal/transport/http/response"
)

type SignupHandler struct {
	svc *signup.Service
}

func NewSignupHandler(svc *signup.Service) *SignupHandler {
	return &SignupHandler{svc: svc}
}

// Signup handles POST /signup. The body's step field selects the step.
func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	var err error
	switch req.Step {
	case 1:
		err = h.step1(w, r, req)
	case 2:
		err = h.step2(w, r, req)
	case 3:
		err = h.step3(w, r, req)
	}

	middleware.SignupStepsTotal.WithLabelValues(strconv.Itoa(req.Step), outcome(err)).Inc()
	if err != nil {
		response.WriteError(w, r, err)
	}
}

func (h *SignupHandler) step1(w http.ResponseWriter, r *http.Request, req dto.SignupRequest) error {
	res, err := h.svc.Step1(r.Context(), signup.Step1Input{
		Category:      req.Category,
		SerialID:      req.SerialID,
		Branch:        req.Branch,
		Relationship:  req.Relationship,
		PrincipalName: req.PrincipalName,
	})
	if err != nil {
		return err
	}
	response.OK(w, dto.SignupStepData{
		Step:       int(res.Step),
		NextStep:   int(res.NextStep),
		Step1Token: res.Token,
		ExpiresIn:  int64(res.ExpiresIn.Seconds()),
	})
	return nil
}

func (h *SignupHandler) step2(w http.ResponseWriter, r *http.Request, req dto.SignupRequest) error {
	res, err := h.svc.Step2(r.Context(), signup.Step2Input{
		Token:     req.Step1Token,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		DOB:       req.DOB,
	})
	if err != nil {
		return err
	}
	response.OK(w, dto.SignupStepData{
		Step:       int(res.Step),
		NextStep:   int(res.NextStep),
		Step2Token: res.Token,
		ExpiresIn:  int64(res.ExpiresIn.Seconds()),
	})
	return nil
}

func (h *SignupHandler) step3(w http.ResponseWriter, r *http.Request, req dto.SignupRequest) error {
	res, err := h.svc.Step3(r.Context(), signup.Step3Input{
		Token:    req.Step2Token,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	response.Created(w, dto.SignupCompletedData{
		Step: int(domain.SignupStepCredentials),
		User: dto.NewCreatedUserView(res.Account),
	})
	return nil
}

// outcome is the metrics label for a result: "ok" or a stable error code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}
