// Package allocator - клиент keygen сервиса с локальным блоком ID.
// Блок амортизирует round-trip к keygen: один /allocate на block_size кодов.
package allocator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
)

// idBlock - зарезервированный диапазон [current, end]
type idBlock struct {
	current int64
	end     int64
}

// Client выдаёт следующие уникальные ID из локального блока, запрашивая
// новый блок у keygen при исчерпании. Mutex держится на весь refill:
// конкурентные запросы с пустым блоком сливаются в один вызов /allocate.
type Client struct {
	keygenURL string
	stack     string
	blockSize int64
	http      *http.Client

	mu    sync.Mutex
	block *idBlock
}

// New создаёт клиент аллокатора
func New(keygenURL, stack string, blockSize int64) *Client {
	return &Client{
		keygenURL: keygenURL,
		stack:     stack,
		blockSize: blockSize,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// NextID возвращает следующий уникальный ID
func (c *Client) NextID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.block != nil && c.block.current <= c.block.end {
		id := c.block.current
		c.block.current++
		return id, nil
	}

	// Блок пуст или исчерпан - запрашиваем новый под тем же mutex
	block, err := c.fetchBlock(ctx)
	if err != nil {
		return 0, err
	}

	id := block.current
	block.current++
	c.block = block
	return id, nil
}

// fetchBlock запрашивает новый блок у keygen
func (c *Client) fetchBlock(ctx context.Context) (*idBlock, error) {
	payload, err := json.Marshal(domain.AllocateRequest{
		Size:  c.blockSize,
		Stack: c.stack,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.keygenURL+"/allocate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keygen request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keygen returned status %d", resp.StatusCode)
	}

	var alloc domain.AllocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&alloc); err != nil {
		return nil, fmt.Errorf("keygen response decode failed: %w", err)
	}

	logger.Log.Debug("Allocated ID block",
		"start", alloc.Start,
		"end", alloc.End,
		"stack", alloc.Stack,
	)

	return &idBlock{current: alloc.Start, end: alloc.End}, nil
}
