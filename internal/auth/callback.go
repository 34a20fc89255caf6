package auth

import (
	"context"
	"log/slog"
	"net/url"
)

// Failure codes reported to the login page.
const (
	FailureInvalidRequest       = "invalid_request"
	FailureInvalidState         = "invalid_state"
	FailureAuthenticationFailed = "authentication_failed"
	FailureInvalidNonce         = "invalid_nonce"
)

// State is a step of the login callback handshake.
type State int

const (
	StateIdle State = iota
	StateStart
	StateValidatingState
	StateExchangingTokens
	StateValidatingNonce
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStart:
		return "start"
	case StateValidatingState:
		return "validating_state"
	case StateExchangingTokens:
		return "exchanging_tokens"
	case StateValidatingNonce:
		return "validating_nonce"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateIdle || s == StateAuthenticated || s == StateFailed
}

// Step is a state plus the failure code when the state is StateFailed.
type Step struct {
	State  State
	Reason string
}

// EventKind enumerates the inputs of the handshake.
type EventKind int

const (
	EventReceived EventKind = iota
	EventStateChecked
	EventTokensExchanged
	EventNonceChecked
)

// Event is an input to Transition. OK carries the outcome of the step the
// event reports on.
type Event struct {
	Kind   EventKind
	OK     bool
	Params CallbackParams
}

// CallbackParams are the query parameters of the identity provider redirect.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// ParseCallbackParams reads code, state and error from a query string.
func ParseCallbackParams(query url.Values) CallbackParams {
	return CallbackParams{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}
}

// Transition is the pure transition function of the handshake. Events that
// do not apply to the current state leave it unchanged.
func Transition(step Step, ev Event) Step {
	if step.State.Terminal() && step.State != StateIdle {
		return step
	}
	switch {
	case (step.State == StateStart || step.State == StateIdle) && ev.Kind == EventReceived:
		p := ev.Params
		switch {
		case p.Error != "":
			return Step{State: StateFailed, Reason: p.Error}
		case p.Code == "":
			return Step{State: StateIdle}
		case p.State == "":
			return Step{State: StateFailed, Reason: FailureInvalidRequest}
		}
		return Step{State: StateValidatingState}

	case step.State == StateValidatingState && ev.Kind == EventStateChecked:
		if !ev.OK {
			return Step{State: StateFailed, Reason: FailureInvalidState}
		}
		return Step{State: StateExchangingTokens}

	case step.State == StateExchangingTokens && ev.Kind == EventTokensExchanged:
		if !ev.OK {
			return Step{State: StateFailed, Reason: FailureAuthenticationFailed}
		}
		return Step{State: StateValidatingNonce}

	case step.State == StateValidatingNonce && ev.Kind == EventNonceChecked:
		if !ev.OK {
			return Step{State: StateFailed, Reason: FailureInvalidNonce}
		}
		return Step{State: StateAuthenticated}
	}
	return step
}

// FailureTarget is the login page URL carrying the failure code.
func FailureTarget(reason string) string {
	return LoginPath + "?error=" + url.QueryEscape(reason)
}

// codeExchanger is the part of the gateway the callback depends on.
type codeExchanger interface {
	ExchangeCodeForTokens(ctx context.Context, code string) (TokenSet, error)
}

// CallbackController runs the login callback handshake for one session.
type CallbackController struct {
	oidc    *OIDCClient
	gateway codeExchanger
	logger  *slog.Logger
}

// NewCallbackController creates a callback controller.
func NewCallbackController(oidc *OIDCClient, gateway codeExchanger, logger *slog.Logger) *CallbackController {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackController{oidc: oidc, gateway: gateway, logger: logger}
}

// Handle drives the handshake to a terminal step. Steps run strictly in
// order and nothing is persisted until every check has passed. On a
// terminal step the browser is sent to the post-login target or the login
// page; an idle callback navigates nowhere.
func (c *CallbackController) Handle(ctx context.Context, s *Session, params CallbackParams) Step {
	step := Transition(Step{State: StateStart}, Event{Kind: EventReceived, Params: params})

	var tokens TokenSet
	for !step.State.Terminal() {
		switch step.State {
		case StateValidatingState:
			ok := c.oidc.ValidateState(s, params.State)
			if !ok {
				c.logger.Warn("state mismatch on login callback", "event", "csrf_state_mismatch",
					"error", &CSRFValidationError{Param: "state"})
			}
			step = Transition(step, Event{Kind: EventStateChecked, OK: ok})

		case StateExchangingTokens:
			var err error
			tokens, err = c.gateway.ExchangeCodeForTokens(ctx, params.Code)
			if err != nil {
				c.logger.Warn("failed to exchange code for tokens", "event", "token_exchange_failed", "error", err)
			}
			step = Transition(step, Event{Kind: EventTokensExchanged, OK: err == nil && tokens.Complete()})

		case StateValidatingNonce:
			ok := c.checkNonce(ctx, s, tokens.IDToken)
			if !ok {
				c.logger.Warn("nonce mismatch on login callback", "event", "csrf_nonce_mismatch",
					"error", &CSRFValidationError{Param: "nonce"})
			}
			step = Transition(step, Event{Kind: EventNonceChecked, OK: ok})

		default:
			step = Step{State: StateFailed, Reason: FailureInvalidRequest}
		}
	}

	switch step.State {
	case StateAuthenticated:
		c.complete(s, tokens)
	case StateFailed:
		c.fail(s, step.Reason)
	}
	return step
}

// checkNonce consumes the stored nonce whether or not the token decodes.
func (c *CallbackController) checkNonce(ctx context.Context, s *Session, rawIDToken string) bool {
	id, err := c.oidc.DecodeIdentity(ctx, rawIDToken)
	if err != nil {
		c.logger.Warn("failed to decode ID token", "error", err)
		s.store().Delete(KeyNonce)
		return false
	}
	return c.oidc.ValidateNonce(s, id.Nonce)
}

func (c *CallbackController) complete(s *Session, tokens TokenSet) {
	store := s.store()
	store.SaveTokens(tokens)
	store.ClearCSRF()

	stored, _ := store.Take(KeyRedirectAfterLogin)
	target := ValidateRedirectPath(stored, HomePath)

	c.logger.Info("login completed", "event", "tokens_stored", "redirect", target)
	s.navigate(target)
}

func (c *CallbackController) fail(s *Session, reason string) {
	store := s.store()
	store.ClearCSRF()
	store.Delete(KeyRedirectAfterLogin)

	c.logger.Info("login failed", "event", "login_failed", "reason", reason)
	s.navigate(FailureTarget(reason))
}
