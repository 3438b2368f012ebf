package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_equipment_tool/app"

	"github.com/gin-gonic/gin"
)

// AuthController swaps a bearer token for a cookie session and back.
type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

func (ac *AuthController) CreateSession(c *gin.Context) {
	actor := app.ActorFrom(c)
	id, err := ac.Sessions.Issue(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	ac.setAppCookie(c.Writer, id, ac.Sessions.TTL())
	c.JSON(http.StatusCreated, app.H{"userID": actor.ID, "role": actor.Role})
}

// Logout drops the current cookie session, or every session of the caller
// with ?all=true.
func (ac *AuthController) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("all") == "true" {
		if err := ac.Sessions.RevokeAllForUser(ctx, app.ActorFrom(c).ID); err != nil {
			respondError(c, err)
			return
		}
	} else if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = ac.Sessions.Delete(ctx, ck.Value)
	}
	ac.setAppCookie(c.Writer, "", -time.Second)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func (ac *AuthController) WhoAmI(c *gin.Context) {
	actor := app.ActorFrom(c)
	c.JSON(http.StatusOK, app.H{"userID": actor.ID, "role": actor.Role})
}
