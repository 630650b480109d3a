package relay

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/goodchoice-relay/internal/dedup"
	"github.com/wolfman30/goodchoice-relay/internal/menu"
	"github.com/wolfman30/goodchoice-relay/internal/whatsapp"
)

const greetingDelivery = `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messages":[{"from":"15550001111","id":"wamid.HELLO","timestamp":"1700000000","type":"text","text":{"body":"Hello"}}]}}]}]}`

func TestRedeliveredGreetingProducesOneWelcome(t *testing.T) {
	messenger := &fakeMessenger{}
	router := NewRouter(RouterConfig{
		Catalog:   menu.Default(),
		Messenger: messenger,
		Pipeline:  &recordingFulfiller{},
	})
	runner := NewTaskRunner(router.Handle, time.Second, nil, nil)
	webhook := whatsapp.NewWebhookHandler(whatsapp.WebhookConfig{
		VerifyToken: "verify-me",
		Window:      dedup.NewMemoryWindow(time.Hour),
		Dispatcher:  runner,
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(greetingDelivery))
			rec := httptest.NewRecorder()
			webhook.HandleInbound(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()
	runner.Wait()

	sent := messenger.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "list", sent[0].Kind)
	assert.Equal(t, "15550001111", sent[0].To)
}
