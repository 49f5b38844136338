package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kdvornichenko/weika-students/core/cache"
	"github.com/kdvornichenko/weika-students/core/constants"
	"github.com/kdvornichenko/weika-students/core/errors"
	"github.com/kdvornichenko/weika-students/core/logger"
	"github.com/kdvornichenko/weika-students/core/middleware"
	"github.com/kdvornichenko/weika-students/core/utils"
	"github.com/kdvornichenko/weika-students/modules/calendar/dto"
	"github.com/kdvornichenko/weika-students/modules/calendar/entity"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// ConnectURL builds the consent URL. The state is `uid:nonce` with the nonce
// parked in redis so the callback can reject replayed or forged redirects.
func (s *calendarService) ConnectURL(ctx context.Context, identity middleware.Identity) (string, *errors.AppError) {
	nonce := utils.GenerateID()
	key := constants.RedisKeyOAuthState + identity.UserID.String()
	if err := s.cache.Set(ctx, key, nonce, constants.OAuthStateTTL); err != nil {
		logger.Error("CalendarService:ConnectURL:StoreState:Error", "error", err)
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to start connect flow", err)
	}

	state := identity.UserID.String() + ":" + nonce
	authURL := s.gateway.OAuthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("login_hint", identity.Email),
	)
	return authURL, nil
}

// HandleCallback finishes the consent flow: validates state, exchanges the
// code, verifies the granting account against the tutor's own email, and only
// then persists the credential.
func (s *calendarService) HandleCallback(ctx context.Context, state, code string) (*dto.StatusResponse, *errors.AppError) {
	uidStr, nonce, ok := strings.Cut(state, ":")
	if !ok {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "malformed state", nil)
	}
	userID, err := uuid.Parse(uidStr)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "malformed state", err)
	}

	key := constants.RedisKeyOAuthState + userID.String()
	stored, err := s.cache.GetDel(ctx, key)
	if err != nil {
		if stderrors.Is(err, cache.ErrMiss) {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "connect flow expired, start again", nil)
		}
		logger.Error("CalendarService:Callback:LoadState:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to validate state", err)
	}
	if stored != nonce {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "state mismatch", nil)
	}

	oauthCfg := s.gateway.OAuthConfig()
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("CalendarService:Callback:Exchange:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "code exchange failed", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "no refresh token granted, remove prior access and reconnect", nil)
	}

	info, err := fetchUserinfo(ctx, oauthCfg, token)
	if err != nil {
		logger.Error("CalendarService:Callback:Userinfo:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to read account info", err)
	}

	// The granting Google account must be the tutor's own account. Refuse
	// before saving anything, so a wrong-account grant leaves no credential.
	ownEmail, err := s.repo.GetUserEmail(ctx, userID)
	if err != nil {
		logger.Error("CalendarService:Callback:GetUserEmail:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load user", err)
	}
	if ownEmail == "" {
		return nil, errors.NewAppError(errors.ErrNotFound, "user not found", nil)
	}
	if !strings.EqualFold(ownEmail, info.Email) {
		return nil, errors.NewAppErrorWithDetails(
			errors.ErrAccountMismatch,
			"connected account does not match your account",
			nil,
			map[string]string{"verified_email": ownEmail, "account_email": info.Email},
		)
	}

	client, err := s.gateway.build(ctx, oauthCfg.TokenSource(ctx, token))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to build calendar client", err)
	}
	primary, err := client.GetCalendar(ctx, constants.DefaultCalendarID)
	if err != nil {
		logger.Error("CalendarService:Callback:GetPrimary:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to read primary calendar", err)
	}

	cred := &entity.CalendarCredential{
		UserID:          userID,
		Provider:        "google",
		RefreshToken:    token.RefreshToken,
		AccountEmail:    info.Email,
		AccountID:       info.ID,
		CalendarID:      primary.ID,
		CalendarSummary: primary.Summary,
	}
	if err := s.repo.SaveCredential(ctx, cred); err != nil {
		logger.Error("CalendarService:Callback:SaveCredential:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to save credential", err)
	}

	logger.Info("CalendarService:Callback:Connected", "user_id", userID, "account_email", info.Email)
	return &dto.StatusResponse{
		Connected:       true,
		AccountEmail:    cred.AccountEmail,
		CalendarID:      cred.CalendarID,
		CalendarSummary: cred.CalendarSummary,
	}, nil
}

// Disconnect revokes the grant (best effort; an already-revoked token is
// fine) and removes the stored credential.
func (s *calendarService) Disconnect(ctx context.Context, identity middleware.Identity) *errors.AppError {
	cred, err := s.repo.GetCredential(ctx, identity.UserID)
	if err != nil {
		logger.Error("CalendarService:Disconnect:GetCredential:Error", "error", err)
		return errors.NewAppError(errors.ErrInternalServer, "failed to load credential", err)
	}
	if cred == nil {
		return nil
	}

	if rerr := revokeToken(ctx, cred.RefreshToken); rerr != nil {
		logger.Warn("CalendarService:Disconnect:Revoke:Failed", "error", rerr, "user_id", identity.UserID)
	}

	if err := s.repo.DeleteCredential(ctx, identity.UserID); err != nil {
		logger.Error("CalendarService:Disconnect:Delete:Error", "error", err)
		return errors.NewAppError(errors.ErrInternalServer, "failed to remove credential", err)
	}
	logger.Info("CalendarService:Disconnect:Done", "user_id", identity.UserID)
	return nil
}

type userinfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func fetchUserinfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*userinfo, error) {
	httpClient := cfg.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return nil, err
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: unexpected status %d", res.StatusCode)
	}

	var info userinfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo: no email in response")
	}
	return &info, nil
}

func revokeToken(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleRevokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke: unexpected status %d", res.StatusCode)
	}
	return nil
}
