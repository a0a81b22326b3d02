package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/desertthunder/amply/internal/formatter"
	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/server"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/ui"
	"github.com/urfave/cli/v3"
)

const defaultTokenTTL = 12 * time.Hour

// resolveParty accepts either a party ID or an invite code.
func resolveParty(ctx context.Context, coord *party.Coordinator, ref string) (*models.ListeningParty, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: party id or code", shared.ErrMissingArgument)
	}
	if shared.IsUUID(ref) {
		return coord.Get(ctx, ref)
	}
	return coord.GetByCode(ctx, ref)
}

// PartyList prints parties from the configured database, newest first.
func (r *Runner) PartyList(ctx context.Context, cmd *cli.Command) error {
	config, _, err := r.configFor(cmd)
	if err != nil {
		return err
	}

	opts := party.ListOptions{Limit: cmd.Int("limit")}
	if s := cmd.String("status"); s != "" {
		status, err := models.ParsePartyStatus(s)
		if err != nil {
			return err
		}
		opts.Status = status
	}

	coord, closeDB, err := r.openCoordinator(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	parties, err := coord.List(ctx, opts)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(parties, true)
	}
	if len(parties) == 0 {
		return r.writePlain("No parties found\n")
	}

	_, err = r.output.Write(formatter.PartiesTable(parties))
	return err
}

// PartyShow renders a party snapshot as text, markdown or CSV.
func (r *Runner) PartyShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, _, err := r.configFor(cmd)
	if err != nil {
		return err
	}

	coord, closeDB, err := r.openCoordinator(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := resolveParty(ctx, coord, cmd.StringArg("party"))
	if err != nil {
		return err
	}

	snap, err := coord.Snapshot(ctx, p.ID)
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" && out != "-" {
		if err := formatter.WriteExport(snap, format, out); err != nil {
			return err
		}
		r.logger.Info("party exported", "party", p.ID, "format", format, "path", out)
		return r.writePlain("✓ Exported %s to %s\n", p.Title, out)
	}

	data, err := formatter.Render(snap, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// PartyOpen opens the web client on a party's invite link.
func (r *Runner) PartyOpen(ctx context.Context, cmd *cli.Command) error {
	config, _, err := r.configFor(cmd)
	if err != nil {
		return err
	}

	coord, closeDB, err := r.openCoordinator(ctx, config)
	if err != nil {
		return err
	}
	defer closeDB()

	p, err := resolveParty(ctx, coord, cmd.StringArg("party"))
	if err != nil {
		return err
	}

	link, err := shared.PartyURL(config.Server.WebURL, p.Code)
	if err != nil {
		return err
	}

	if cmd.Bool("print") {
		return r.writePlain("%s\n", link)
	}

	if err := shared.OpenBrowser(link); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		return r.writePlain("Open this link to join: %s\n", link)
	}
	return r.writePlain("Opened %s\n", link)
}

// PartyWatch follows a party over the server WebSocket with a token minted from the configured JWT secret.
func (r *Runner) PartyWatch(ctx context.Context, cmd *cli.Command) error {
	partyID := strings.TrimSpace(cmd.StringArg("party"))
	if partyID == "" {
		return fmt.Errorf("%w: party id", shared.ErrMissingArgument)
	}

	config, _, err := r.configFor(cmd)
	if err != nil {
		return err
	}

	userID := cmd.String("user")
	token, err := mintToken(config, userID, cmd.Duration("token-ttl"))
	if err != nil {
		return err
	}

	serverURL := cmd.String("server")
	if serverURL == "" {
		serverURL = localServerURL(config.Server)
	}

	r.logger.Debug("connecting", "server", serverURL, "party", partyID, "user", userID)
	conn, err := ui.Dial(ctx, serverURL, partyID, token)
	if err != nil {
		return err
	}
	defer conn.Close()

	return ui.Watch(ctx, conn, partyID, userID)
}

func mintToken(config *shared.Config, userID string, ttl time.Duration) (string, error) {
	verifier := server.NewTokenVerifier(config.Supabase.JWTSecret)
	if !verifier.Configured() {
		return "", fmt.Errorf("%w: supabase.jwt_secret is required to mint a watch token", shared.ErrMissingConfig)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return verifier.Sign(userID, ttl)
}

// localServerURL points at the configured listen address, swapping wildcard hosts for loopback.
func localServerURL(cfg shared.ServerConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(cfg.Port))
}
