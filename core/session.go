package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	pathInstallation  = "/v1/installation"
	pathDeviceServer  = "/v1/device-server"
	pathSessionServer = "/v1/session-server"
)

type installationBody struct {
	ClientPublicKey string `json:"client_public_key"`
}

type deviceServerBody struct {
	Description  string   `json:"description"`
	Secret       string   `json:"secret"`
	PermittedIPs []string `json:"permitted_ips,omitempty"`
}

type sessionServerBody struct {
	Secret string `json:"secret"`
}

// ensureSession runs the installation, device-server and session-server
// exchange unless Status already holds an authenticated session.
func (c *Client) ensureSession(ctx context.Context) (err error) {
	if c.status.Session.Authenticated() {
		c.logger.Debug("bunq session already available")
		return nil
	}

	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		c.observeOperation(ctx, startedAt, "bootstrap", err, fields)
	}()

	keys, err := c.keyGenerator()
	if err != nil {
		return fmt.Errorf("core: generate keypair: %w", err)
	}
	publicKey, err := keys.PublicKeyPEM()
	if err != nil {
		return fmt.Errorf("core: encode public key: %w", err)
	}

	installation, err := c.do(ctx, apiCall{
		Operation: "installation",
		Method:    http.MethodPost,
		Path:      pathInstallation,
		Body:      installationBody{ClientPublicKey: publicKey},
	})
	if err != nil {
		return err
	}
	installationItems, err := DecodeEnvelope(pathInstallation, installation.Body)
	if err != nil {
		return err
	}
	installationToken := FindToken(installationItems)
	if installationToken == "" {
		return &ResponseError{Endpoint: pathInstallation, Reason: "missing Token item"}
	}

	if _, err := c.do(ctx, apiCall{
		Operation: "device_server",
		Method:    http.MethodPost,
		Path:      pathDeviceServer,
		Token:     installationToken,
		Body: deviceServerBody{
			Description:  c.config.DeviceDescription,
			Secret:       c.config.Secret,
			PermittedIPs: c.config.PermittedIPs,
		},
	}); err != nil {
		return err
	}

	sessionServer, err := c.do(ctx, apiCall{
		Operation: "session_server",
		Method:    http.MethodPost,
		Path:      pathSessionServer,
		Token:     installationToken,
		Body:      sessionServerBody{Secret: c.config.Secret},
		Sign:      true,
		Keys:      keys,
	})
	if err != nil {
		return err
	}
	sessionItems, err := DecodeEnvelope(pathSessionServer, sessionServer.Body)
	if err != nil {
		return err
	}
	userID := FindUserID(sessionItems)
	if userID == "" {
		return &ResponseError{Endpoint: pathSessionServer, Reason: "missing user id"}
	}
	sessionToken := FindToken(sessionItems)
	if sessionToken == "" {
		return &ResponseError{Endpoint: pathSessionServer, Reason: "missing Token item"}
	}

	c.status.setSession(userID, sessionToken)
	c.keys = keys
	fields["user_id"] = userID
	return nil
}

// resetSession forgets the session and the keypair registered with it.
func (c *Client) resetSession() {
	c.status.clearSession()
	c.keys = nil
}

// ensureSigningSession is ensureSession for signed calls: a session seeded
// without its keypair cannot sign, so it is replaced.
func (c *Client) ensureSigningSession(ctx context.Context) error {
	if c.keys == nil && c.status.Session.Authenticated() {
		c.logger.Debug("bunq session has no signing key, bootstrapping again")
		c.resetSession()
	}
	return c.ensureSession(ctx)
}
