package middleware

import "github.com/gin-gonic/gin"

const flashCookie = "flash_message"

// SetFlash stores a one-shot message for the next page the browser loads.
// gin query-escapes cookie values on write and unescapes them on read.
func SetFlash(c *gin.Context, cfg CookieConfig, message string) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(flashCookie, message, 300, "/", "", cfg.Secure, true)
}

// PopFlash returns and clears the flash message
func PopFlash(c *gin.Context, cfg CookieConfig) string {
	msg, err := c.Cookie(flashCookie)
	if err != nil || msg == "" {
		return ""
	}
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(flashCookie, "", -1, "/", "", cfg.Secure, true)
	return msg
}
