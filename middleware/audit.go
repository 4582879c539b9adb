package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	appcrypto "civicaid/crypto"
	"civicaid/utils"
)

// AuditMiddleware records reviewer actions in the audit log. It runs after
// JWTMiddleware and writes best-effort: a failed audit insert never blocks
// the request.
func AuditMiddleware(db Database, crypto *appcrypto.CryptoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		userID, uidErr := GetUserIDFromToken(c)
		if uidErr != nil {
			return err
		}

		action := c.Method() + " " + c.Route().Path
		metadata := fmt.Sprintf(`{"status": %d}`, c.Response().StatusCode())
		_, dbErr := db.Exec(c.Context(), `
			INSERT INTO audit_log (user_id, action, resource, metadata, ip_encrypted)
			VALUES ($1, $2, $3, $4, $5)`,
			userID, action, c.OriginalURL(), metadata, encryptIP(c, crypto))
		if dbErr != nil {
			utils.LogRequestError(c, "AuditMiddleware: failed to record action", dbErr)
		}

		return err
	}
}

// encryptIP encrypts the client IP address
func encryptIP(c *fiber.Ctx, crypto *appcrypto.CryptoService) []byte {
	ip := utils.ClientIP(c)
	encrypted, err := crypto.Encrypt([]byte(ip))
	if err != nil {
		return nil
	}
	return encrypted
}
