// Package main provides the streaming-credential onboarding tool: it runs
// the OAuth authorization-code flow once per user and prints the resulting
// secret.Bundle for an operator to seed into the secret store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/spottypottysense/motionengine/internal/domain/secret"
)

var (
	app          = kingpin.New("spotifyauth", "streaming credential onboarding tool")
	clientID     = app.Flag("client-id", "Streaming API client ID").Envar("STREAMING_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Streaming API client secret").Envar("STREAMING_CLIENT_SECRET").Required().String()
	userID       = app.Flag("user-id", "userId this bundle will be seeded for").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()

	auth  *spotifyauth.Authenticator
	ch    = make(chan *oauth2.Token)
	state = "motionengine-auth-state"
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	auth = spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
		),
	)

	http.HandleFunc("/callback", completeAuth)
	server := &http.Server{Addr: fmt.Sprintf(":%d", *port)}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start callback server: %v", err)
		}
	}()

	url := auth.AuthURL(state)
	fmt.Println("visit the following URL to authorize motion engine playback control:")
	fmt.Println()
	fmt.Println(url)
	fmt.Println()
	fmt.Println("waiting for authorization...")

	token := <-ch

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("failed to shut down callback server: %v", err)
	}

	bundle := secret.Bundle{
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		ExpiresAt:     token.Expiry,
		LastRefreshed: time.Now(),
	}

	fmt.Println()
	fmt.Println("=== authorization successful ===")
	fmt.Printf("seed the secret store for userId=%s, secretRef=spotify/%s, with:\n\n", *userID, *userID)
	out, _ := json.MarshalIndent(bundle, "", "  ")
	fmt.Println(string(out))
}

func completeAuth(w http.ResponseWriter, r *http.Request) {
	token, err := auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "failed to get token", http.StatusForbidden)
		log.Printf("failed to get token: %v", err)
		return
	}
	if st := r.FormValue("state"); st != state {
		http.Error(w, "state mismatch", http.StatusForbidden)
		log.Printf("state mismatch: %s != %s", st, state)
		return
	}

	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>motion engine - authorization complete</title></head>
<body>
<p>Authorization complete. You can close this window and return to the terminal.</p>
</body>
</html>`)

	ch <- token
}
