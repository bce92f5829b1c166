package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const idempotencyKeyHeader = "Idempotency-Key"

// ApplyLoan submits a loan application. The request is idempotent under its
// IdempotencyKey.
func (c *Client) ApplyLoan(ctx context.Context, in LoanApplicationRequest) (LoanApplicationResponse, error) {
	req, err := jsonRequest("apply_loan", http.MethodPost, "/apply-loan/", true, in)
	if err != nil {
		return LoanApplicationResponse{}, err
	}
	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	req.header = http.Header{idempotencyKeyHeader: []string{key}}

	var out LoanApplicationResponse
	if err := c.call(ctx, req, "", &out); err != nil {
		return LoanApplicationResponse{}, err
	}
	return out, nil
}

// SendChatMessage asks the assistant a question.
func (c *Client) SendChatMessage(ctx context.Context, in ChatRequest) (ChatResponse, error) {
	req, err := jsonRequest("chat", http.MethodPost, "/chat/", true, in)
	if err != nil {
		return ChatResponse{}, err
	}
	var out ChatResponse
	if err := c.call(ctx, req, "", &out); err != nil {
		return ChatResponse{}, err
	}
	return out, nil
}

func (c *Client) FetchAnalytics(ctx context.Context) (Analytics, error) {
	var out Analytics
	if err := c.call(ctx, request{op: "analytics", method: http.MethodGet, path: "/analytics/", auth: true}, "", &out); err != nil {
		return Analytics{}, err
	}
	return out, nil
}

func (c *Client) ListIncomeRecords(ctx context.Context) ([]IncomeRecord, error) {
	var out []IncomeRecord
	if err := c.call(ctx, request{op: "list_income_records", method: http.MethodGet, path: "/income-records/", auth: true}, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateIncomeRecord(ctx context.Context, in CreateIncomeRecordRequest) (IncomeRecord, error) {
	req, err := jsonRequest("create_income_record", http.MethodPost, "/income-records/", true, in)
	if err != nil {
		return IncomeRecord{}, err
	}
	var out IncomeRecord
	if err := c.call(ctx, req, "", &out); err != nil {
		return IncomeRecord{}, err
	}
	return out, nil
}

// DownloadDocument fetches the stored image of a document.
func (c *Client) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("download_document: invalid id %q", id)
	}
	body, err := c.send(ctx, request{op: "download_document", method: http.MethodGet, path: "/documents/" + id + "/content/", auth: true})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("download_document: %w", ErrEmptyResponse)
	}
	return body, nil
}

func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var out []Document
	if err := c.call(ctx, request{op: "list_documents", method: http.MethodGet, path: "/documents/", auth: true}, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadDocument sends an image as multipart form data: a "label" field and
// an "image" file part.
func (c *Client) UploadDocument(ctx context.Context, label, filename string, content []byte) (Document, error) {
	if strings.TrimSpace(label) == "" {
		return Document{}, fmt.Errorf("upload_document: label is required")
	}
	if len(content) == 0 {
		return Document{}, fmt.Errorf("upload_document: content is empty")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("label", label); err != nil {
		return Document{}, fmt.Errorf("upload_document: write label: %w", err)
	}

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	partHeader.Set("Content-Type", http.DetectContentType(content))
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		return Document{}, fmt.Errorf("upload_document: create part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return Document{}, fmt.Errorf("upload_document: write image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Document{}, fmt.Errorf("upload_document: close form: %w", err)
	}

	req := request{
		op:          "upload_document",
		method:      http.MethodPost,
		path:        "/documents/upload/",
		auth:        true,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}
	var out Document
	if err := c.call(ctx, req, "", &out); err != nil {
		return Document{}, err
	}
	return out, nil
}
