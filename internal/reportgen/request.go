package reportgen

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/buildsight/buildsight/internal/period"
	"github.com/buildsight/buildsight/report"
)

// ErrInvalidRequest indicates a malformed report request.
var ErrInvalidRequest = errors.New("reportgen: invalid request")

// Request identifies one report run.
type Request struct {
	BuildingID      string `json:"buildingId" validate:"required,objectid"`
	TemplateID      string `json:"templateId" validate:"required,objectid"`
	UserID          string `json:"userId" validate:"omitempty,objectid"`
	ProposalID      string `json:"proposalId" validate:"omitempty,objectid"`
	DocTo           string `json:"docTo" validate:"omitempty,docto"`
	Filename        string `json:"filename" validate:"max=200"`
	StartDate       string `json:"startDate" validate:"omitempty,reportdate"`
	EndDate         string `json:"endDate" validate:"omitempty,reportdate"`
	CustomStartDate string `json:"customStartDate" validate:"omitempty,reportdate"`
	CustomEndDate   string `json:"customEndDate" validate:"omitempty,reportdate"`
	CustomDate      string `json:"customDate" validate:"omitempty,reportdate"`
	TimeZone        string `json:"timeZone" validate:"omitempty,timezone"`
	ThemeID         string `json:"themeId" validate:"max=64"`
	NotifyEmail     string `json:"notifyEmail" validate:"omitempty,email"`
	// RequestID correlates log lines of one run; empty generates a new id.
	RequestID string `json:"-"`
}

// RequestFromQuery reads the optional report parameters from q. The legacy
// format parameter (word|pdf) applies when docTo is absent.
func RequestFromQuery(buildingID, templateID, userID string, q url.Values) Request {
	docTo := q.Get("docTo")
	if docTo == "" {
		docTo = q.Get("format")
	}
	return Request{
		BuildingID:      buildingID,
		TemplateID:      templateID,
		UserID:          userID,
		ProposalID:      q.Get("proposalId"),
		DocTo:           docTo,
		Filename:        q.Get("filename"),
		StartDate:       q.Get("startDate"),
		EndDate:         q.Get("endDate"),
		CustomStartDate: q.Get("customStartDate"),
		CustomEndDate:   q.Get("customEndDate"),
		CustomDate:      q.Get("customDate"),
		TimeZone:        q.Get("timeZone"),
		ThemeID:         q.Get("themeId"),
		NotifyEmail:     q.Get("notifyEmail"),
	}
}

// NewValidator returns a validator with the report tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return primitive.IsValidObjectID(fl.Field().String())
	})
	_ = v.RegisterValidation("docto", func(fl validator.FieldLevel) bool {
		_, err := report.ParseFormat(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("reportdate", func(fl validator.FieldLevel) bool {
		_, _, err := parseDate(fl.Field().String(), time.UTC)
		return err == nil
	})
	return v
}

// Validate checks r against its struct tags and the cross-field rules.
func (r Request) Validate(v *validator.Validate) error {
	if v == nil {
		v = NewValidator()
	}
	if err := v.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if (r.CustomStartDate == "") != (r.CustomEndDate == "") {
		return fmt.Errorf("%w: customStartDate and customEndDate must be supplied together", ErrInvalidRequest)
	}
	return nil
}

// resolved holds the typed request parameters.
type resolved struct {
	Format     report.Format
	Location   *time.Location
	Window     period.Range
	Custom     *period.Range
	ReportDate time.Time
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01"}

// parseDate accepts day, timestamp and month values. monthOnly reports a
// YYYY-MM value, which callers expand to the whole month.
func parseDate(raw string, loc *time.Location) (t time.Time, monthOnly bool, err error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err = time.ParseInLocation(layout, raw, loc); err == nil {
			return t, layout == "2006-01", nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised date %q", raw)
}

func endOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

// resolve converts the raw parameters. Without dates the window is the twelve
// full months before now; a single bound extends to twelve months.
func (r Request) resolve(now time.Time) (resolved, error) {
	out := resolved{Location: time.UTC}
	if r.TimeZone != "" {
		loc, err := time.LoadLocation(r.TimeZone)
		if err != nil {
			return resolved{}, fmt.Errorf("%w: time zone %q", ErrInvalidRequest, r.TimeZone)
		}
		out.Location = loc
	}
	format, err := report.ParseFormat(r.DocTo)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	out.Format = format

	window, err := r.window(now.In(out.Location), out.Location)
	if err != nil {
		return resolved{}, err
	}
	out.Window = window

	if r.CustomStartDate != "" && r.CustomEndDate != "" {
		custom, err := rangeOf(r.CustomStartDate, r.CustomEndDate, out.Location)
		if err != nil {
			return resolved{}, err
		}
		out.Custom = &custom
	}
	if r.CustomDate != "" {
		d, _, err := parseDate(r.CustomDate, out.Location)
		if err != nil {
			return resolved{}, fmt.Errorf("%w: customDate: %v", ErrInvalidRequest, err)
		}
		out.ReportDate = d
	}
	return out, nil
}

func (r Request) window(now time.Time, loc *time.Location) (period.Range, error) {
	switch {
	case r.StartDate != "" && r.EndDate != "":
		return rangeOf(r.StartDate, r.EndDate, loc)
	case r.StartDate != "":
		start, _, err := parseDate(r.StartDate, loc)
		if err != nil {
			return period.Range{}, fmt.Errorf("%w: startDate: %v", ErrInvalidRequest, err)
		}
		return period.NewRange(start, start.AddDate(1, 0, -1))
	case r.EndDate != "":
		end, monthOnly, err := parseDate(r.EndDate, loc)
		if err != nil {
			return period.Range{}, fmt.Errorf("%w: endDate: %v", ErrInvalidRequest, err)
		}
		if monthOnly {
			end = endOfMonth(end)
		}
		return period.NewRange(time.Date(end.Year(), end.Month()-11, 1, 0, 0, 0, 0, loc), end)
	default:
		end := time.Date(now.Year(), now.Month(), 0, 0, 0, 0, 0, loc)
		return period.NewRange(time.Date(end.Year(), end.Month()-11, 1, 0, 0, 0, 0, loc), end)
	}
}

func rangeOf(rawStart, rawEnd string, loc *time.Location) (period.Range, error) {
	start, _, err := parseDate(rawStart, loc)
	if err != nil {
		return period.Range{}, fmt.Errorf("%w: start: %v", ErrInvalidRequest, err)
	}
	end, monthOnly, err := parseDate(rawEnd, loc)
	if err != nil {
		return period.Range{}, fmt.Errorf("%w: end: %v", ErrInvalidRequest, err)
	}
	if monthOnly {
		end = endOfMonth(end)
	}
	rng, err := period.NewRange(start, end)
	if err != nil {
		return period.Range{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return rng, nil
}
