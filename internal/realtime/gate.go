package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/pkg/logger"
	"github.com/charlesng35/notifystream/pkg/metrics"
)

// CredentialVerifier resolves a bearer credential into an identity.
// *auth.JWTService satisfies it.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Gate admits realtime connection attempts carrying a valid credential.
type Gate struct {
	verifier CredentialVerifier
	log      *zap.Logger
}

// NewGate constructs a gate backed by the supplied verifier.
func NewGate(verifier CredentialVerifier) *Gate {
	return &Gate{
		verifier: verifier,
		log:      logger.WithModule("realtime"),
	}
}

// Authenticate validates the credential on r. Failures are always *AuthRejected.
func (g *Gate) Authenticate(r *http.Request) (auth.Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return auth.Identity{}, g.reject(ReasonMissingCredential, nil)
	}

	if g.verifier == nil {
		return auth.Identity{}, g.reject(ReasonVerifierError, errors.New("no credential verifier configured"))
	}

	identity, err := g.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return auth.Identity{}, g.reject(ReasonInvalidCredential, err)
		}
		return auth.Identity{}, g.reject(ReasonVerifierError, err)
	}

	identity.UserID = strings.TrimSpace(identity.UserID)
	if identity.UserID == "" {
		return auth.Identity{}, g.reject(ReasonInvalidCredential, errors.New("credential has no subject"))
	}

	return identity, nil
}

func (g *Gate) reject(reason string, err error) error {
	metrics.GateRejections.WithLabelValues(reason).Inc()
	g.log.Debug("connection rejected", zap.String("reason", reason), zap.Error(err))
	return &AuthRejected{Reason: reason, Err: err}
}

// TokenFromRequest reads the credential from the token or access_token query
// parameters, falling back to the Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}

	query := r.URL.Query()
	if token := strings.TrimSpace(query.Get("token")); token != "" {
		return token
	}
	if token := strings.TrimSpace(query.Get("access_token")); token != "" {
		return token
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}
