package utils

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
)

// GetRealIP extracts the client IP, preferring proxy headers over the
// socket address. X-Real-IP wins when it carries a public address, then the
// first public entry of X-Forwarded-For, then gin's ClientIP fallback.
func GetRealIP(c *gin.Context) string {
	realIP := strings.TrimSpace(c.Request.Header.Get("X-Real-IP"))
	if realIP != "" && isValidIP(realIP) && !isPrivateIP(net.ParseIP(realIP)) {
		return realIP
	}

	forwarded := c.Request.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		for _, ipStr := range ips {
			clientIP := strings.TrimSpace(ipStr)
			if isValidIP(clientIP) {
				ip := net.ParseIP(clientIP)
				if !isPrivateIP(ip) && !isLocalhost(clientIP) {
					return clientIP
				}
			}
		}
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if isValidIP(clientIP) {
				return clientIP
			}
		}
	}

	return c.ClientIP()
}

// DeviceInfo summarizes the requesting client from its User-Agent header
type DeviceInfo struct {
	UserAgent string `json:"user_agent"`
	Browser   string `json:"browser"`
	OS        string `json:"os"`
	Mobile    bool   `json:"mobile"`
	Bot       bool   `json:"bot"`
}

// ParseDevice extracts structured device details from the request
func ParseDevice(c *gin.Context) DeviceInfo {
	raw := c.Request.UserAgent()
	if raw == "" {
		return DeviceInfo{UserAgent: "Unknown"}
	}

	ua := user_agent.New(raw)
	name, version := ua.Browser()

	return DeviceInfo{
		UserAgent: raw,
		Browser:   strings.TrimSpace(name + " " + version),
		OS:        ua.OS(),
		Mobile:    ua.Mobile(),
		Bot:       ua.Bot(),
	}
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

func isLocalhost(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1" || ip == "localhost"
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}

	for _, cidr := range privateRanges {
		_, subnet, _ := net.ParseCIDR(cidr)
		if subnet.Contains(ip) {
			return true
		}
	}

	return false
}
