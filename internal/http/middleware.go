package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is an explicit enum; each role carries a fixed capability set.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleReceptionist  Role = "receptionist"
	RoleClient        Role = "client"
)

type Capability string

const (
	CapGateOperate    Capability = "gate:operate"
	CapManageSpots    Capability = "spots:manage"
	CapViewSpots      Capability = "spots:view"
	CapReserve        Capability = "spots:reserve"
	CapManageVehicles Capability = "vehicles:manage"
	CapViewLedger     Capability = "ledger:view"
	CapManagePayments Capability = "payments:manage"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdministrator: {
		CapGateOperate: true, CapManageSpots: true, CapViewSpots: true,
		CapReserve: true, CapManageVehicles: true, CapViewLedger: true,
		CapManagePayments: true,
	},
	RoleReceptionist: {
		CapGateOperate: true, CapViewSpots: true, CapReserve: true,
		CapManageVehicles: true, CapViewLedger: true, CapManagePayments: true,
	},
	RoleClient: {
		CapViewSpots: true, CapReserve: true,
	},
}

func (r Role) Can(cap Capability) bool {
	return roleCapabilities[r][cap]
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

const roleContextKey = "auth.role"

// RequestID tags every request with an identifier for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

// Auth validates a bearer token signed with secret and stores the
// caller's role on the context. Tokens are issued by an external
// identity service.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("missing bearer token"))
			return
		}

		var cl claims
		parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("invalid token"))
			return
		}

		role := Role(cl.Role)
		if _, known := roleCapabilities[role]; !known {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse("unknown role"))
			return
		}

		c.Set(roleContextKey, role)
		c.Next()
	}
}

// RequireCapability gates a route on the caller's role capability set.
// It must run after Auth.
func RequireCapability(cap Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(roleContextKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("missing bearer token"))
			return
		}
		role, ok := v.(Role)
		if !ok || !role.Can(cap) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse("insufficient permissions"))
			return
		}
		c.Next()
	}
}
