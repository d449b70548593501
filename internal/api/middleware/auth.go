// Пакет middleware — HTTP middleware SIGESCON: аутентификация по Bearer-токену,
// проверка профиля, логирование и метрики.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/bigkaa/sigescon/internal/api/errors"
	"github.com/bigkaa/sigescon/internal/auth"
	"github.com/bigkaa/sigescon/internal/domain/rbac"
)

// contextKey — тип ключа для хранения данных в context.
type contextKey string

const (
	// ContextKeyClaims — ключ для хранения AuthClaims в context.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — данные аутентифицированного пользователя из токена.
type AuthClaims struct {
	// UserID — id пользователя (sub)
	UserID int64
	// Perfil — профиль на момент входа
	Perfil string
	// JTI — идентификатор токена, используется для отзыва
	JTI string
	// ExpiresAt — срок действия токена
	ExpiresAt time.Time
}

// JWTAuth — middleware проверки Bearer-токенов.
type JWTAuth struct {
	tokens      *auth.TokenManager
	revocations auth.RevocationStore
	logger      *slog.Logger
}

// NewJWTAuth создаёт middleware аутентификации.
func NewJWTAuth(tokens *auth.TokenManager, revocations auth.RevocationStore, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		tokens:      tokens,
		revocations: revocations,
		logger:      logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для проверки токена.
// Извлекает Bearer token, проверяет подпись, срок и отзыв,
// и сохраняет AuthClaims в context.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			claims, err := j.tokens.Parse(parts[1])
			if err != nil {
				j.logger.Debug("Ошибка валидации токена", slog.String("error", err.Error()))
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			revoked, err := j.revocations.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				j.logger.Error("Ошибка проверки отзыва токена",
					slog.String("jti", claims.ID),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Внутренняя ошибка сервера")
				return
			}
			if revoked {
				apierrors.Unauthorized(w, "Токен отозван")
				return
			}

			userID, _ := claims.UserID()
			authClaims := &AuthClaims{
				UserID: userID,
				Perfil: claims.Perfil,
				JTI:    claims.ID,
			}
			if claims.ExpiresAt != nil {
				authClaims.ExpiresAt = claims.ExpiresAt.Time
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, authClaims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole возвращает middleware, проверяющий профиль пользователя.
// Пропускает запрос, если профиль совпадает с одним из перечисленных.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}

			if rbac.HasAnyRole(claims.Perfil, roles...) {
				next.ServeHTTP(w, r)
				return
			}

			apierrors.Forbidden(w, "Недостаточно прав: требуется профиль "+strings.Join(roles, " или "))
		})
	}
}

// ClaimsFromContext извлекает AuthClaims из context.
// Возвращает nil, если claims отсутствуют.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// WithClaims помещает AuthClaims в context. Используется в тестах обработчиков.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}
