package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adrve/cloud-analytics/internal/models"
)

// Фиксированный промпт для модели: описание сцены + требуемая структура ответа
const detectionPrompt = "Analyze this image from an urban street scene. " +
	"Identify all humans, vehicles (cars, bikes, etc.), animals, and other potential obstacles. " +
	"For each object, provide its location in the image (top, bottom, left, right) and confidence score. " +
	`Format the response as JSON only with the following structure: {"objects": [{"type": "person", "confidence": 0.95, "box": [x1, y1, x2, y2]}, ...]}`

const maxTokens = 1000

// Кадры со стрима идут в 1280x720 — запасной бокс на весь кадр
var fullFrameBox = []float64{0, 0, 1280, 720}

type Client struct {
	url   string
	model string
	hc    *http.Client
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		url:   strings.TrimRight(baseURL, "/") + "/invoke",
		model: model,
		hc:    &http.Client{Timeout: timeout},
	}
}

// Result размеченный результат инференса: Degraded выставляется, когда хоть одно
// поле пришлось доставать из fallback-значений, чтобы чистые детекции не
// смешивались с деградированными
type Result struct {
	Objects  []models.Detection
	Degraded bool
}

type inferenceRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Prompt    string `json:"prompt"`
	Image     string `json:"image"` // base64 JPEG
	MediaType string `json:"media_type"`
}

type inferenceResponse struct {
	Content string `json:"content"`
}

// модельный JSON: {"objects": [{"type": ..., "confidence": ..., "box": [...]}]}
type rawObject struct {
	Type       string    `json:"type"`
	Confidence *float64  `json:"confidence"`
	Box        []float64 `json:"box"`
}

type rawDetections struct {
	Objects []rawObject `json:"objects"`
}

// DetectObjects отправляет кадр модели и разбирает текстовый ответ.
// Ошибки парсинга не фатальны — поля добираются fallback-значениями
func (c *Client) DetectObjects(ctx context.Context, frameJPEG []byte) (Result, error) {
	reqBody, err := json.Marshal(inferenceRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Prompt:    detectionPrompt,
		Image:     base64.StdEncoding.EncodeToString(frameJPEG),
		MediaType: "image/jpeg",
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}

	var ir inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	return ParseContent(ir.Content), nil
}

// ParseContent вырезает JSON из текстового ответа модели и нормализует объекты.
// Модель может обернуть JSON в пояснительный текст — берём от первой '{' до
// последней '}'
func ParseContent(content string) Result {
	jsonStart := strings.Index(content, "{")
	jsonEnd := strings.LastIndex(content, "}")

	if jsonStart < 0 || jsonEnd <= jsonStart {
		return Result{Degraded: true}
	}

	var raw rawDetections
	if err := json.Unmarshal([]byte(content[jsonStart:jsonEnd+1]), &raw); err != nil {
		return Result{Degraded: true}
	}

	result := Result{}
	for _, obj := range raw.Objects {
		det := models.Detection{Source: models.SourceCloud}

		if obj.Type == "" {
			det.Class = "unknown"
			result.Degraded = true
		} else {
			det.Class = strings.ToLower(obj.Type)
		}

		if obj.Confidence == nil || *obj.Confidence < 0 || *obj.Confidence > 1 {
			det.Confidence = 0.5
			result.Degraded = true
		} else {
			det.Confidence = *obj.Confidence
		}

		if len(obj.Box) != 4 {
			det.Box = fullFrameBox
			result.Degraded = true
		} else {
			det.Box = obj.Box
		}

		result.Objects = append(result.Objects, det)
	}

	return result
}
