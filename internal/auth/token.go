package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mautops/qms-workflow/internal/config"
)

var (
	// ErrMissingToken 请求中没有令牌
	ErrMissingToken = errors.New("missing bearer token")
	// ErrNoVerifier 既没有配置 JWKS 也没有配置 HMAC 密钥
	ErrNoVerifier = errors.New("auth: jwks_url, issuer or hmac_secret is required")
)

// Claims JWT 声明,兼容 Keycloak 的字段
type Claims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// Username 登录名,没有 preferred_username 时使用 sub
func (c *Claims) Username() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}

// TokenValidator 令牌校验器
// RS256 令牌通过 JWKS 公钥校验,HS256 令牌通过共享密钥校验
type TokenValidator struct {
	issuer     string
	jwksURL    string
	secret     []byte
	keys       *sync.Map
	httpClient *http.Client
}

// NewTokenValidator 创建令牌校验器
// 只配置了 issuer 时按 Keycloak 的路径推导 JWKS 地址
func NewTokenValidator(cfg config.AuthConfig) (*TokenValidator, error) {
	jwksURL := cfg.JWKSURL
	if jwksURL == "" && cfg.Issuer != "" {
		jwksURL = strings.TrimSuffix(cfg.Issuer, "/") + "/protocol/openid-connect/certs"
	}
	if jwksURL == "" && cfg.HMACSecret == "" {
		return nil, ErrNoVerifier
	}
	return &TokenValidator{
		issuer:     cfg.Issuer,
		jwksURL:    jwksURL,
		secret:     []byte(cfg.HMACSecret),
		keys:       &sync.Map{},
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// ValidateToken 校验令牌并返回声明
func (v *TokenValidator) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	var methods []string
	if v.jwksURL != "" {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	if len(v.secret) > 0 {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}
	if claims.Username() == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// keyFunc 按签名算法选择校验密钥
func (v *TokenValidator) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA:
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid in token header")
		}
		return v.GetPublicKey(kid)
	case *jwt.SigningMethodHMAC:
		return v.secret, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}

// GetPublicKey 获取公钥 (从缓存或 JWKS)
func (v *TokenValidator) GetPublicKey(kid string) (*rsa.PublicKey, error) {
	if cached, ok := v.keys.Load(kid); ok {
		return cached.(*rsa.PublicKey), nil
	}

	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	// 缓存所有 RSA 公钥,轮换后的新 kid 会触发下一次拉取
	var found *rsa.PublicKey
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		publicKey, err := parseRSAPublicKey(key.N, key.E)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key %s: %w", key.Kid, err)
		}
		v.keys.Store(key.Kid, publicKey)
		if key.Kid == kid {
			found = publicKey
		}
	}
	if found == nil {
		return nil, fmt.Errorf("key not found in JWKS: %s", kid)
	}
	return found, nil
}

// parseRSAPublicKey 解析 RSA 公钥
func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// TokenFromRequest 从 Authorization 头读取令牌
// WebSocket 握手无法设置请求头,允许使用 token 查询参数
func TokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	if header != "" {
		return strings.TrimSpace(header)
	}
	return c.Query("token")
}
