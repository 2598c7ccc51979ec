package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/observability/logctx"
)

// DefaultGame is preselected in the game ID check.
const DefaultGame = "Mobile Legends"

type CheckIDRequest struct {
	Game   string `json:"game"`
	UserID string `json:"user_id"`
	Server string `json:"server"`
}

// CheckIDResult is the verdict on an in-game account identifier.
type CheckIDResult struct {
	Valid    bool            `json:"valid"`
	Nickname string          `json:"nickname,omitempty"`
	Message  string          `json:"message,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// CheckID asks the backend whether req names an existing account. Backend
// rejections with a JSON body are read the same way as successes.
func (s *Service) CheckID(ctx context.Context, req CheckIDRequest) (CheckIDResult, error) {
	if strings.TrimSpace(req.Game) == "" {
		req.Game = DefaultGame
	}
	reply, err := relay(s.send(ctx, "tools.check-game-id", s.api.checkGameID(), http.MethodPost, req))
	if err != nil {
		logctx.FromOr(ctx, s.log).Warn("check_id_failed", observability.Err(err))
		return CheckIDResult{}, err
	}
	r := gjson.ParseBytes(reply.Payload)
	return CheckIDResult{
		Valid:    r.Get("valid").Bool(),
		Nickname: r.Get("nickname").String(),
		Message:  r.Get("message").String(),
		Raw:      reply.Payload,
	}, nil
}

type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login relays the backend's answer to a login attempt verbatim.
func (s *Service) Login(ctx context.Context, email, password string) (Reply, error) {
	return relay(s.send(ctx, "auth.login", s.api.auth("login"), http.MethodPost,
		Credentials{Email: email, Password: password}))
}

// Register relays the backend's answer to a sign-up verbatim.
func (s *Service) Register(ctx context.Context, name, email, password string) (Reply, error) {
	return relay(s.send(ctx, "auth.register", s.api.auth("register"), http.MethodPost,
		Credentials{Name: name, Email: email, Password: password}))
}
