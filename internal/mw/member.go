package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderMemberID carries the authenticated member. Authentication itself
// happens upstream.
const HeaderMemberID = "X-Member-ID"

const memberKey = "member_id"

// Member stores the caller's member id, if any, in the gin context.
func Member() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderMemberID)); id != "" {
			c.Set(memberKey, id)
		}
		c.Next()
	}
}

// RequireMember rejects requests without a member id.
func RequireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		if MemberID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": HeaderMemberID + " header is required",
				"code":  "member_required",
			})
			return
		}
		c.Next()
	}
}

// MemberID returns the member id stored by Member.
func MemberID(c *gin.Context) string {
	return c.GetString(memberKey)
}
