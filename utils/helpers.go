package utils

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetUserID retrieves the user ID stored by the auth middleware.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("userID"); exists {
		if idStr, ok := userID.(string); ok {
			return idStr
		}
	}
	return ""
}

func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateEmergencyID returns EMG-<unix millis>-<9 base36 chars>.
func GenerateEmergencyID(now time.Time) string {
	id := uuid.New()
	suffix := strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
	for len(suffix) < 9 {
		suffix = "0" + suffix
	}
	return fmt.Sprintf("EMG-%d-%s", now.UnixMilli(), suffix[:9])
}

// MapLink builds a Google Maps link for the coordinate.
func MapLink(lat, lng float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64))
}

var campusEmailPattern = regexp.MustCompile(`(?i)^(\d{2}[a-z]{2,3}\d{3,4})@panimalar\.edu\.in$`)

// GenerateCampusID derives the student roll number from a campus email,
// falling back to the upper-cased local part.
func GenerateCampusID(email string) string {
	email = strings.TrimSpace(email)
	if m := campusEmailPattern.FindStringSubmatch(email); m != nil {
		return strings.ToUpper(m[1])
	}
	local, _, _ := strings.Cut(email, "@")
	return strings.ToUpper(local)
}

func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

func FormatDuration(duration time.Duration) string {
	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	}
	if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(duration.Hours()), int(duration.Minutes())%60)
}
