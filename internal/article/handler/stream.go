package handler

import (
	"net/http"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article/listview"
	"github.com/AbiyasX/FirebaseActt/internal/article/service"
	"github.com/gin-gonic/gin"
)

type streamPayload struct {
	Articles []Summary `json:"articles"`
	Error    string    `json:"error,omitempty"`
}

// streamArticles serves one list view model as Server-Sent Events. Every
// state change becomes a "snapshot" event. A failed subscription sends one
// "error" event and ends the stream. The view model is torn down when the
// stream ends.
func streamArticles(c *gin.Context, svc service.Service, keepAlive time.Duration) {
	// latest state wins when the client reads slower than the store changes
	states := make(chan listview.State, 1)
	vm := listview.New(svc, listview.OnChange(func(st listview.State) {
		select {
		case states <- st:
		default:
			select {
			case <-states:
			default:
			}
			states <- st
		}
	}))

	ctx := c.Request.Context()
	if err := vm.Activate(ctx); err != nil {
		log.Errorf("stream subscribe: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": vm.State().Error})
		return
	}
	defer vm.Deactivate()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
		case st := <-states:
			payload := streamPayload{Articles: summarize(st.Articles), Error: st.Error}
			if st.Error != "" {
				c.SSEvent("error", payload)
				c.Writer.Flush()
				return
			}
			c.SSEvent("snapshot", payload)
		}
		c.Writer.Flush()
	}
}
