package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// accessTokenHeader carries a game access grant.  The Authorization header
// is taken by the session token.
const accessTokenHeader = "X-Game-Access"

func accessToken(c echo.Context) string {
	if t := strings.TrimSpace(c.Request().Header.Get(accessTokenHeader)); t != "" {
		return t
	}
	return strings.TrimSpace(c.QueryParam("access_token"))
}

// Access handles GET /v1/games/:id/access.
func (h *GameHandler) Access(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	st, err := h.Engine.CheckAccess(c.Request().Context(), gameID(c), uid, accessToken(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"password_required": st.PasswordRequired,
		"has_access":        st.HasAccess,
	})
}

type grantReq struct {
	Password string `json:"password" validate:"required"`
}

// GrantAccess handles POST /v1/games/:id/access.  A correct password buys
// a token scoped to this game and caller.
func (h *GameHandler) GrantAccess(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req grantReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	tok, err := h.Engine.GrantAccess(c.Request().Context(), gameID(c), uid, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tokenPart{Token: tok.Token, Expires: tok.Exp})
}

type passwordReq struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password" validate:"omitempty,min=4,max=72"`
}

// SetPassword handles POST /v1/games/:id/password.
func (h *GameHandler) SetPassword(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req passwordReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.Engine.SetAccessPassword(c.Request().Context(), gameID(c), uid, req.Enabled, req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type joinReq struct {
	Token string `json:"token"`
}

// Join handles POST /v1/games/:id/join.
func (h *GameHandler) Join(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return nil
	}
	var req joinReq
	_ = c.Bind(&req)
	tok := strings.TrimSpace(req.Token)
	if tok == "" {
		tok = accessToken(c)
	}
	p, err := h.Engine.JoinGame(c.Request().Context(), gameID(c), uid, tok)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newPlayerResp(*p))
}
