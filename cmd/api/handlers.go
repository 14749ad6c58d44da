package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/fredWallet/pkg/apperr"
	"github.com/mcclellann/fredWallet/pkg/calc"
	"github.com/mcclellann/fredWallet/pkg/loan"
	"github.com/mcclellann/fredWallet/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type quoteRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Tenure int             `json:"tenure"`
}

type amountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type planRequest struct {
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
}

type planResponse struct {
	Debt *models.DebtObligation `json:"debt"`
	Plan models.RepaymentPlan   `json:"plan"`
}

type transactionResponse struct {
	ID uuid.UUID `json:"id"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.loans.Products())
}

func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.loans.Product(mux.Vars(r)["id"])
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	terms, err := s.loans.Quote(mux.Vars(r)["id"], req.Amount, req.Tenure)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, terms)
}

func (s *Server) eligibilityHandler(w http.ResponseWriter, r *http.Request) {
	results, err := s.loans.EligibilityAll(r.Context())
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

func (s *Server) productEligibilityHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.loans.Eligibility(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) createApplicationHandler(w http.ResponseWriter, r *http.Request) {
	var req loan.ApplyRequest
	if !s.decode(w, r, &req) {
		return
	}
	app, err := s.loans.Apply(r.Context(), req)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, app)
}

func (s *Server) listApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	apps, err := s.loans.List(r.Context())
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, apps)
}

func (s *Server) getApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "application")
	if !ok {
		return
	}
	app, err := s.loans.Get(r.Context(), id)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, app)
}

// transitionHandler serves approve, reject and disburse.
func (s *Server) transitionHandler(fn func(context.Context, uuid.UUID) (*models.LoanApplication, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r, "application")
		if !ok {
			return
		}
		app, err := fn(r.Context(), id)
		if err != nil {
			s.respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, app)
	}
}

func (s *Server) listDebtsHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.debts.RefreshOverdue(r.Context(), s.now()); err != nil {
		s.respondWithError(w, err)
		return
	}
	debts, err := s.debts.List(r.Context())
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, debts)
}

func (s *Server) createDebtHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DebtDescriptor
	if !s.decode(w, r, &req) {
		return
	}
	debt, err := s.debts.AddDebt(r.Context(), req)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, debt)
}

func (s *Server) getDebtHandler(w http.ResponseWriter, r *http.Request) {
	debt, ok := s.loadDebt(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, debt)
}

// loadDebt reads the debt named in the path after bringing overdue status up
// to date, so single-debt reads agree with the list.
func (s *Server) loadDebt(w http.ResponseWriter, r *http.Request) (*models.DebtObligation, bool) {
	id, ok := s.pathID(w, r, "debt")
	if !ok {
		return nil, false
	}
	if _, err := s.debts.RefreshOverdue(r.Context(), s.now()); err != nil {
		s.respondWithError(w, err)
		return nil, false
	}
	debt, err := s.debts.Get(r.Context(), id)
	if err != nil {
		s.respondWithError(w, err)
		return nil, false
	}
	return debt, true
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "debt")
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	debt, err := s.debts.ApplyPayment(r.Context(), id, req.Amount)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, debt)
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request, payment decimal.Decimal) (*models.DebtObligation, models.RepaymentPlan, bool) {
	debt, ok := s.loadDebt(w, r)
	if !ok {
		return nil, models.RepaymentPlan{}, false
	}
	plan, err := calc.PlanRepayment(debt.CurrentAmount, debt.InterestRate, payment)
	if err != nil {
		s.respondWithError(w, err)
		return nil, models.RepaymentPlan{}, false
	}
	return debt, plan, true
}

func (s *Server) planHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := decimal.NewFromString(r.URL.Query().Get("monthlyPayment"))
	if err != nil {
		s.respondWithError(w, apperr.Validation("monthlyPayment must be a number"))
		return
	}
	debt, plan, ok := s.plan(w, r, payment)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, planResponse{Debt: debt, Plan: plan})
}

// setPlanHandler adopts a payment as the debt's monthly payment, provided it
// clears the debt within the planning horizon.
func (s *Server) setPlanHandler(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !s.decode(w, r, &req) {
		return
	}
	debt, plan, ok := s.plan(w, r, req.MonthlyPayment)
	if !ok {
		return
	}
	if !plan.Feasible() {
		s.respondWithError(w, apperr.Validation("a monthly payment of %s does not clear the debt within %d months (%s)",
			req.MonthlyPayment.StringFixed(2), calc.MaxPlanMonths, plan.Outcome))
		return
	}

	debt, err := s.debts.SetMonthlyPayment(r.Context(), debt.ID, req.MonthlyPayment)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, planResponse{Debt: debt, Plan: plan})
}

func (s *Server) quickPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	debt, ok := s.loadDebt(w, r)
	if !ok {
		return
	}
	quick, err := calc.QuickPayments(debt.CurrentAmount)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, quick)
}

func (s *Server) walletHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.wallet.Balances(r.Context())
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, b)
}

func (s *Server) walletTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := s.wallet.Transactions(r.Context())
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, txs)
}

func (s *Server) depositHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.wallet.Deposit(r.Context(), req.Amount, req.Description)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, transactionResponse{ID: id})
}

func (s *Server) withdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.wallet.Withdraw(r.Context(), req.Amount, req.Description)
	if err != nil {
		s.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, transactionResponse{ID: id})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondWithError(w, apperr.Validation("malformed JSON body"))
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.respondWithError(w, apperr.Validation("invalid %s ID", what))
		return uuid.Nil, false
	}
	return id, true
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) respondWithError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("op", "main.respondWithError"),
			zap.Error(err),
		)
	}
	message, severity := apperr.Describe(err)
	respondWithJSON(w, code, map[string]string{"error": message, "severity": severity})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
