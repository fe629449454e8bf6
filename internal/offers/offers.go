package offers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	pdf "github.com/ledongthuc/pdf"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/audit"
	"placecell.org/internal/portal"
)

const uploadPath = "/placements/upload-offer-letter"

// NotSubmitted is the status of a placement the student has not answered.
const NotSubmitted = "Not Submitted"

var (
	ErrEmptyUpdate   = errors.New("offers: provide an offer letter, feedback or a placement status")
	ErrInvalidStatus = errors.New(`offers: placement status must be "Yes" or "No"`)
	ErrNotPDF        = errors.New("offers: offer letter must be a PDF")
	ErrMissingIDs    = errors.New("offers: student and placement ids are required")
)

// Gateway is the slice of the API client offers need.
type Gateway interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PostMultipart(ctx context.Context, path string, form *apiclient.Form, out any) error
}

// Letter is an offer letter file to upload.
type Letter struct {
	Name string
	Data []byte
}

// Update is a student's answer to one placement.
type Update struct {
	StudentID   portal.ID
	PlacementID portal.ID
	Letter      *Letter
	Feedback    string
	Status      string
}

func (u Update) validate() error {
	if u.StudentID == "" || u.PlacementID == "" {
		return ErrMissingIDs
	}
	if u.Letter == nil && strings.TrimSpace(u.Feedback) == "" && u.Status == "" {
		return ErrEmptyUpdate
	}
	if u.Status != "" && u.Status != "Yes" && u.Status != "No" {
		return ErrInvalidStatus
	}
	if u.Letter != nil {
		if _, err := PageCount(u.Letter.Data); err != nil {
			return err
		}
	}
	return nil
}

// PageCount opens data as a PDF and returns its page count. A file that does
// not parse, or has no pages, is rejected with ErrNotPDF.
func PageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	n = doc.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return n, nil
}

// Book holds the logged-in student's placements.
type Book struct {
	client Gateway

	mu     sync.RWMutex
	offers []portal.Offer
}

func New(client Gateway) *Book {
	return &Book{client: client}
}

// List loads the placements recorded for studentID. A student with no
// placement gets an empty list rather than an error.
func (b *Book) List(ctx context.Context, studentID portal.ID) ([]portal.Offer, error) {
	if strings.TrimSpace(string(studentID)) == "" {
		return nil, ErrMissingIDs
	}
	var resp struct {
		Message string         `json:"message"`
		Data    []portal.Offer `json:"data"`
	}
	err := b.client.GetJSON(ctx, "/placements/get/"+url.PathEscape(string(studentID)), nil, &resp)
	switch {
	case errors.Is(err, apiclient.ErrNotFound):
		resp.Data = nil
	case err != nil:
		return nil, fmt.Errorf("list offers: %w", err)
	}
	for i := range resp.Data {
		if resp.Data[i].Status == "" {
			resp.Data[i].Status = NotSubmitted
		}
	}
	b.mu.Lock()
	b.offers = resp.Data
	b.mu.Unlock()
	return b.Offers(), nil
}

// Offers returns the last loaded list with local patches applied.
func (b *Book) Offers() []portal.Offer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]portal.Offer, len(b.offers))
	copy(out, b.offers)
	return out
}

// Update uploads an offer letter and/or the student's answer, then patches
// the matching local placement.
func (b *Book) Update(ctx context.Context, u Update) (string, error) {
	if err := u.validate(); err != nil {
		return "", err
	}
	form := &apiclient.Form{}
	form.Set("student_id", string(u.StudentID)).
		Set("placement_id", string(u.PlacementID)).
		Set("status", u.Status)
	if fb := strings.TrimSpace(u.Feedback); fb != "" {
		form.Set("feedback", fb)
	}
	if u.Letter != nil {
		form.Attach(apiclient.File{
			Field:       "offer_letter_url",
			Name:        filepath.Base(u.Letter.Name),
			ContentType: "application/pdf",
			Data:        u.Letter.Data,
		})
	}

	var resp struct {
		Message         string    `json:"message"`
		OfferLetter     string    `json:"offer_letter"`
		PlacementStatus string    `json:"placement_status"`
		PlacementID     portal.ID `json:"placement_id"`
	}
	if err := b.client.PostMultipart(ctx, uploadPath, form, &resp); err != nil {
		return "", fmt.Errorf("update offer %s: %w", u.PlacementID, err)
	}

	b.mu.Lock()
	for i := range b.offers {
		if b.offers[i].PlacementID != u.PlacementID {
			continue
		}
		if resp.OfferLetter != "" {
			b.offers[i].OfferLetterURL = resp.OfferLetter
		}
		switch {
		case resp.PlacementStatus != "":
			b.offers[i].Status = resp.PlacementStatus
		case u.Status != "":
			b.offers[i].Status = u.Status
		}
		if fb := strings.TrimSpace(u.Feedback); fb != "" {
			b.offers[i].Feedback = fb
		}
	}
	b.mu.Unlock()
	_ = audit.LogEvent(ctx, "offer.update", map[string]any{
		"placement_id": string(u.PlacementID),
		"status":       u.Status,
		"letter":       u.Letter != nil,
	})
	return resp.Message, nil
}
