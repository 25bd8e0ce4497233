package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/qms-workflow/internal/auth"
	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/workflow"
	"gorm.io/gorm"
)

const actorContextKey = "actor"

// ActorMiddleware 认证中间件
// 校验令牌后按登录名查找组织架构中的用户,作为本次请求的操作人
func ActorMiddleware(validator *auth.TokenValidator, org repository.OrganizationRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validator.ValidateToken(auth.TokenFromRequest(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    http.StatusUnauthorized,
				Message: "unauthorized",
				Detail:  err.Error(),
			})
			return
		}

		user, err := org.FindUserByUsername(c.Request.Context(), claims.Username())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
					Code:    http.StatusForbidden,
					Message: "user is not registered in the organization",
				})
				return
			}
			_ = c.Error(WrapError(err, http.StatusInternalServerError, "failed to load user"))
			c.Abort()
			return
		}
		if user.Status != model.UserStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Code:    http.StatusForbidden,
				Message: "user is disabled",
			})
			return
		}

		c.Set(actorContextKey, workflow.Actor{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName(),
		})
		c.Next()
	}
}

// GetActor 获取当前请求的操作人
func GetActor(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

// SetActor 设置当前请求的操作人
func SetActor(c *gin.Context, actor workflow.Actor) {
	c.Set(actorContextKey, actor)
}
