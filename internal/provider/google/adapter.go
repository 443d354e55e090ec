// Package google implements the provider contract for Google Calendar
// using the official Calendar API client.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/AntoineXev/miniorg/internal/model"
	"github.com/AntoineXev/miniorg/internal/provider"
)

const dateLayout = "2006-01-02"

// Event types Google reports for entries that are not real calendar
// commitments and must not be imported.
var nonSchedulableTypes = map[string]bool{
	"workingLocation": true,
	"outOfOffice":     true,
	"focusTime":       true,
	"birthday":        true,
}

// Adapter implements provider.Provider for Google Calendar.
type Adapter struct {
	clientID     string
	clientSecret string
}

// NewAdapter creates a Google Calendar adapter from an OAuth client
// registration.
func NewAdapter(clientID, clientSecret string) *Adapter {
	return &Adapter{clientID: clientID, clientSecret: clientSecret}
}

// Name returns the provider identifier for Google.
func (a *Adapter) Name() model.Provider {
	return model.ProviderGoogle
}

// oauthConfig builds the oauth2 config for a given redirect URI.
func (a *Adapter) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		RedirectURL:  redirectURI,
		Endpoint:     googleoauth.Endpoint,
		Scopes: []string{
			calendar.CalendarEventsScope,
			calendar.CalendarReadonlyScope,
		},
	}
}

// AuthURL builds the consent-screen URL. AccessTypeOffline plus a forced
// consent prompt guarantees Google returns a refresh token.
func (a *Adapter) AuthURL(redirectURI, state string) string {
	return a.oauthConfig(redirectURI).AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode performs the one-time code-for-token exchange.
func (a *Adapter) ExchangeCode(ctx context.Context, code, redirectURI string) (*provider.TokenSet, error) {
	tok, err := a.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %v: %w", err, provider.ErrTokenExchangeFailed)
	}
	return tokenSetFromOAuth(tok), nil
}

// RefreshToken obtains a fresh access token from a refresh token.
func (a *Adapter) RefreshToken(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	src := a.oauthConfig("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			switch retrieveErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				// invalid_grant: the refresh token was revoked or expired.
				return nil, fmt.Errorf("google refresh rejected: %s: %w",
					retrieveErr.ErrorCode, provider.ErrRefreshFailed)
			}
			return nil, &provider.ProviderError{
				Provider: "google",
				Status:   retrieveErr.Response.StatusCode,
				Body:     string(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("google refresh: %w", err)
	}
	ts := tokenSetFromOAuth(tok)
	if ts.RefreshToken == refreshToken {
		// The stored token is still current; only report rotations.
		ts.RefreshToken = ""
	}
	return ts, nil
}

// service builds a Calendar API client bound to one access token.
func (a *Adapter) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	srv, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return srv, nil
}

// ListCalendars returns the calendars on the account's calendar list.
func (a *Adapter) ListCalendars(ctx context.Context, accessToken string) ([]provider.Calendar, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	calendars := make([]provider.Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, provider.Calendar{
			ID:      item.Id,
			Name:    item.Summary,
			Primary: item.Primary,
		})
	}
	return calendars, nil
}

// ListEvents fetches events in [start, end), or the incremental delta
// when syncToken is set. Cancelled and non-schedulable entries are
// filtered out before returning.
func (a *Adapter) ListEvents(
	ctx context.Context,
	accessToken, calendarID string,
	start, end time.Time,
	syncToken string,
) (*provider.ListResult, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	result := &provider.ListResult{}
	pageToken := ""
	for {
		call := srv.Events.List(calendarID).
			SingleEvents(true).
			MaxResults(250).
			Context(ctx)
		if syncToken != "" {
			call = call.SyncToken(syncToken)
		} else {
			call = call.
				TimeMin(start.Format(time.RFC3339)).
				TimeMax(end.Format(time.RFC3339))
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
				// The sync token has been invalidated server-side.
				return nil, fmt.Errorf("google sync token: %w", provider.ErrSyncTokenExpired)
			}
			return nil, wrapAPIError(err)
		}

		for _, item := range res.Items {
			if item.Status == "cancelled" || nonSchedulableTypes[item.EventType] {
				continue
			}
			ev, convErr := eventFromGoogle(item)
			if convErr != nil {
				return nil, convErr
			}
			result.Events = append(result.Events, ev)
		}

		if res.NextSyncToken != "" {
			result.NextSyncToken = res.NextSyncToken
		}
		pageToken = res.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return result, nil
}

// CreateEvent creates an event on the external calendar.
func (a *Adapter) CreateEvent(ctx context.Context, accessToken, calendarID string, ev provider.Event) (string, error) {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	created, err := srv.Events.Insert(calendarID, eventToGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError(err)
	}
	return created.Id, nil
}

// UpdateEvent applies a partial patch; only the fields set on patch are
// sent to Google.
func (a *Adapter) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, patch provider.EventPatch) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	gp := &calendar.Event{}
	if patch.Title != nil {
		gp.Summary = *patch.Title
		gp.ForceSendFields = append(gp.ForceSendFields, "Summary")
	}
	if patch.Description != nil {
		gp.Description = *patch.Description
		gp.ForceSendFields = append(gp.ForceSendFields, "Description")
	}
	allDay := patch.AllDay != nil && *patch.AllDay
	if patch.Start != nil {
		gp.Start = eventDateTime(*patch.Start, allDay)
	}
	if patch.End != nil {
		gp.End = eventDateTime(*patch.End, allDay)
	}
	if patch.Color != nil {
		gp.ColorId = *patch.Color
	}

	if _, err := srv.Events.Patch(calendarID, eventID, gp).Context(ctx).Do(); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// DeleteEvent removes an event from the external calendar.
func (a *Adapter) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	srv, err := a.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// tokenSetFromOAuth maps an oauth2 token to the provider-neutral shape.
func tokenSetFromOAuth(tok *oauth2.Token) *provider.TokenSet {
	ts := &provider.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		ts.Scope = scope
	}
	return ts
}

// eventFromGoogle converts an API event to the provider-neutral shape.
func eventFromGoogle(item *calendar.Event) (provider.Event, error) {
	ev := provider.Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Color:       item.ColorId,
	}

	var err error
	if item.Start != nil && item.Start.Date != "" {
		ev.AllDay = true
		ev.Start, err = time.Parse(dateLayout, item.Start.Date)
		if err != nil {
			return ev, fmt.Errorf("parsing all-day start %q: %w", item.Start.Date, err)
		}
		ev.End, err = time.Parse(dateLayout, item.End.Date)
		if err != nil {
			return ev, fmt.Errorf("parsing all-day end %q: %w", item.End.Date, err)
		}
	} else if item.Start != nil {
		ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return ev, fmt.Errorf("parsing start %q: %w", item.Start.DateTime, err)
		}
		ev.End, err = time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return ev, fmt.Errorf("parsing end %q: %w", item.End.DateTime, err)
		}
	}

	for _, att := range item.Attendees {
		if att.Self {
			ev.ResponseStatus = att.ResponseStatus
			break
		}
	}

	return ev, nil
}

// eventToGoogle converts a provider-neutral event to the API shape.
func eventToGoogle(ev provider.Event) *calendar.Event {
	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		ColorId:     ev.Color,
		Start:       eventDateTime(ev.Start, ev.AllDay),
		End:         eventDateTime(ev.End, ev.AllDay),
	}
}

// eventDateTime builds the date-or-datetime union Google expects.
func eventDateTime(t time.Time, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format(dateLayout)}
	}
	return &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
}

// wrapAPIError maps a Calendar API failure to a ProviderError.
func wrapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &provider.ProviderError{
			Provider: "google",
			Status:   apiErr.Code,
			Body:     apiErr.Message,
		}
	}
	return fmt.Errorf("google calendar: %w", err)
}
