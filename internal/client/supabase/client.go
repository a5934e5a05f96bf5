// Package supabase HTTP клиент PostgREST API Supabase (подмножество: select, insert, upsert).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config конфигурация клиента
type Config struct {
	// URL адрес проекта, например https://xyz.supabase.co
	URL string
	// APIKey anon или service_role ключ
	APIKey string
	// HTTPClient опционально; по умолчанию таймаут 10s
	HTTPClient *http.Client
}

// Client клиент Supabase REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New создаёт клиент; URL и APIKey обязательны
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// From начинает запрос к таблице
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, params: url.Values{}}
}

// Ping проверяет доступность PostgREST (используется в /health)
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return resp.Error()
}

// QueryBuilder собирает PostgREST запрос. Не потокобезопасен, один builder = один запрос.
type QueryBuilder struct {
	client     *Client
	table      string
	params     url.Values
	single     bool
	upsert     bool
	onConflict string
}

// Select колонки ответа ("*" или "user_id,token")
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.params.Set("select", columns)
	return q
}

// Eq фильтр column = value
func (q *QueryBuilder) Eq(column, value string) *QueryBuilder {
	q.params.Add(column, "eq."+value)
	return q
}

// Order сортировка
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

// Limit ограничение числа строк
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Single ожидает ровно одну строку; пустой результат вернётся как 406
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Upsert переводит следующий ExecuteInsert в режим merge-duplicates по колонке onConflict
func (q *QueryBuilder) Upsert(onConflict string) *QueryBuilder {
	q.upsert = true
	q.onConflict = onConflict
	return q
}

// Execute выполняет SELECT
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	q.client.setHeaders(req)
	return q.client.do(req)
}

// ExecuteInsert выполняет INSERT (или upsert, если был вызван Upsert)
func (q *QueryBuilder) ExecuteInsert(ctx context.Context, data any) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}

	prefer := "return=minimal"
	if q.upsert {
		prefer = "resolution=merge-duplicates," + prefer
		if q.onConflict != "" {
			q.params.Set("on_conflict", q.onConflict)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return q.client.do(req)
}

func (q *QueryBuilder) url() string {
	u := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	if len(q.params) > 0 {
		u += "?" + q.params.Encode()
	}
	return u
}

// Response ответ PostgREST
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON декодирует тело ответа в v
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Error возвращает ошибку для статусов >= 400 с сообщением PostgREST, если оно есть
func (r *Response) Error() error {
	if r.StatusCode < http.StatusBadRequest {
		return nil
	}
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &errResp); err == nil && errResp.Message != "" {
		return &Error{StatusCode: r.StatusCode, Code: errResp.Code, Message: errResp.Message}
	}
	return &Error{StatusCode: r.StatusCode, Message: http.StatusText(r.StatusCode)}
}

// Error ошибка PostgREST
type Error struct {
	StatusCode int
	// Code код PostgREST/PostgreSQL, например PGRST116 (ноль строк при Single) или 23505
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
