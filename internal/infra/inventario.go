package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RestockItem is one returned product to be re-entered into hospital stock.
type RestockItem struct {
	ProductoID string `json:"producto_id"`
	Cantidad   int    `json:"cantidad"`
}

// RestockPayload is sent to the hospital inventory service when a processed
// devolución contains items in good condition flagged for restock.
type RestockPayload struct {
	DevolucionID string        `json:"devolucion_id"`
	Items        []RestockItem `json:"items"`
}

// RestockResponse is returned by the inventory service.
type RestockResponse struct {
	Aceptado    bool   `json:"aceptado"`
	Observacion string `json:"observacion"`
}

// InventarioClient talks HTTP to the hospital inventory service. Failures are
// isolated from the financial core: restock runs after the refund transaction
// commits, behind a circuit breaker.
type InventarioClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewInventarioClient(baseURL string) *InventarioClient {
	return &InventarioClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Restock sends a POST to the inventory service and returns its verdict.
func (c *InventarioClient) Restock(ctx context.Context, payload RestockPayload) (*RestockResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("inventario: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/restock", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inventario: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventario: servicio unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventario: servicio returned %d", resp.StatusCode)
	}

	var result RestockResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("inventario: decode response: %w", err)
	}
	return &result, nil
}
