package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// sendRequest mirrors the Cloud API send payload the inbox produces.
type sendRequest struct {
	MessagingProduct string `json:"messaging_product" binding:"required"`
	To               string `json:"to" binding:"required"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Simulator stands in for the WhatsApp Cloud API during local development.
// It accepts sends, emits the matching status webhooks back at the inbox,
// and can fabricate inbound messages on demand.
type Simulator struct {
	webhookURL   string
	appSecret    string
	businessID   string
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	rng          *rand.Rand
	client       *http.Client
}

func NewSimulator(webhookURL, appSecret string, deliveryRate float64, minDelay, maxDelay time.Duration) *Simulator {
	return &Simulator{
		webhookURL:   webhookURL,
		appSecret:    appSecret,
		businessID:   strconv.FormatInt(time.Now().Unix(), 10),
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Simulator) randomDelay() time.Duration {
	if s.maxDelay <= s.minDelay {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rng.Int63n(int64(s.maxDelay-s.minDelay)))
}

func (s *Simulator) shouldDeliver() bool {
	return s.rng.Float64() < s.deliveryRate
}

func newWamid() string {
	return "wamid.SIM" + uuid.New().String()
}

// deliverWebhook signs and posts one webhook payload the way the real
// platform does.
func (s *Simulator) deliverWebhook(payload any) {
	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal webhook payload")
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	if s.appSecret != "" {
		mac := hmac.New(sha256.New, []byte(s.appSecret))
		mac.Write(body)
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	log.Info().Int("status", resp.StatusCode).Msg("Webhook delivered")
}

func (s *Simulator) webhookEnvelope(value map[string]any) map[string]any {
	return map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"id": s.businessID,
			"changes": []map[string]any{{
				"field": "messages",
				"value": value,
			}},
		}},
	}
}

// emitStatuses plays the sent/delivered/read progression for one outgoing
// message, spaced by the configured delay.
func (s *Simulator) emitStatuses(wamid, recipient, displayPhone string) {
	statuses := []string{"sent", "delivered", "read"}
	if !s.shouldDeliver() {
		statuses = []string{"sent", "failed"}
	}

	for _, status := range statuses {
		time.Sleep(s.randomDelay())

		s.deliverWebhook(s.webhookEnvelope(map[string]any{
			"messaging_product": "whatsapp",
			"metadata": map[string]any{
				"display_phone_number": displayPhone,
				"phone_number_id":      "simulator",
			},
			"statuses": []map[string]any{{
				"id":           wamid,
				"status":       status,
				"timestamp":    strconv.FormatInt(time.Now().Unix(), 10),
				"recipient_id": recipient,
			}},
		}))
	}
}

type handler struct {
	sim          *Simulator
	displayPhone string
}

// SendMessage implements POST /:phone_number_id/messages.
func (h *handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"message": "Invalid request: " + err.Error(), "code": 100},
		})
		return
	}

	wamid := newWamid()
	log.Info().
		Str("wamid", wamid).
		Str("to", req.To).
		Str("type", req.Type).
		Msg("Accepted outgoing message")

	go h.sim.emitStatuses(wamid, req.To, h.displayPhone)

	c.JSON(http.StatusOK, gin.H{
		"messaging_product": "whatsapp",
		"contacts":          []gin.H{{"input": req.To, "wa_id": req.To}},
		"messages":          []gin.H{{"id": wamid}},
	})
}

type incomingRequest struct {
	From string `json:"from" binding:"required"`
	Name string `json:"name"`
	Text string `json:"text" binding:"required"`
}

// SimulateIncoming fabricates an inbound text message webhook, for driving
// the inbox without a phone in hand.
func (h *handler) SimulateIncoming(c *gin.Context) {
	var req incomingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	name := req.Name
	if name == "" {
		name = "Simulated User"
	}
	wamid := newWamid()

	go h.sim.deliverWebhook(h.sim.webhookEnvelope(map[string]any{
		"messaging_product": "whatsapp",
		"metadata": map[string]any{
			"display_phone_number": h.displayPhone,
			"phone_number_id":      "simulator",
		},
		"contacts": []map[string]any{{
			"wa_id":   req.From,
			"profile": map[string]any{"name": name},
		}},
		"messages": []map[string]any{{
			"from":      req.From,
			"id":        wamid,
			"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
			"type":      "text",
			"text":      map[string]any{"body": req.Text},
		}},
	}))

	c.JSON(http.StatusOK, gin.H{"message_id": wamid})
}

func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     time.Now(),
		"delivery_rate": h.sim.deliveryRate,
	})
}

func setupRouter(h *handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	router.POST("/:phone_number_id/messages", h.SendMessage)
	router.POST("/simulate/incoming", h.SimulateIncoming)
	router.GET("/health", h.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	webhookURL := getEnv("WEBHOOK_URL", "http://localhost:8080/webhook")
	appSecret := getEnv("APP_SECRET", "")
	displayPhone := getEnv("DISPLAY_PHONE", "15550000000")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 200*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)

	log.Info().
		Str("port", port).
		Str("webhook_url", webhookURL).
		Float64("delivery_rate", deliveryRate).
		Msg("Starting WhatsApp Cloud API simulator")

	sim := NewSimulator(webhookURL, appSecret, deliveryRate, minDelay, maxDelay)
	router := setupRouter(&handler{sim: sim, displayPhone: displayPhone})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
