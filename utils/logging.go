package utils

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// InfoLogger writes to stdout, ErrorLogger to stderr. Container log routing
// depends on the split: stdout is collected as traffic, stderr as incidents.
var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
)

// InitLogging wires the package loggers and points the default log package
// at stderr. Both binaries call it first thing in main.
func InitLogging() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	log.SetOutput(os.Stderr)
	log.SetPrefix("SYSTEM: ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
}

// LogError records an error with a short context tag. A nil error is a no-op
// so callers can log unconditionally after deferred cleanup.
func LogError(context string, err error, metadata ...interface{}) {
	if err == nil {
		return
	}
	args := append([]interface{}{context, err}, metadata...)
	ErrorLogger.Println(args...)
}

// LogRequestError adds request identity (request id, reviewer, route, peer)
// to an error log line.
func LogRequestError(c *fiber.Ctx, context string, err error, metadata ...interface{}) {
	if err == nil {
		return
	}
	requestID, _ := c.Locals("request_id").(string)
	userID, _ := c.Locals("user_id").(uuid.UUID)

	args := []interface{}{
		"request_id", requestID,
		"user_id", userID.String(),
		"method", c.Method(),
		"path", c.Path(),
		"ip", c.IP(),
		"context", context,
		"error", err,
	}
	args = append(args, metadata...)
	ErrorLogger.Println(args...)
}
