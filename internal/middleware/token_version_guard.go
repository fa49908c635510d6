package middleware

import (
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

// DB上のユーザーが有効で、JWTのtvとtoken_versionが一致するか確認する。
// 消されたユーザー・無効化されたユーザー・強制ログアウト済みのトークンは401
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := UserIDFrom(c)
			if !ok {
				return unauthorized(c)
			}

			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return unauthorized(c)
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return unauthorized(c)
			}
			if !user.IsActive || user.TokenVersion != tv {
				return unauthorized(c)
			}

			//roleはDBの値を正とする
			c.Set(CtxUserRoleKey, user.Role)

			return next(c)
		}
	}
}
