package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by nrgin with
// the caller and reports handler errors. Without a transaction it does nothing.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if id := ActorID(c); id != 0 {
			txn.AddAttribute("actor_id", id)
		}
		if messageID := c.GetHeader(MessageHeader); messageID != "" {
			txn.AddAttribute("message_id", messageID)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
