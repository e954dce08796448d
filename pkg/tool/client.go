package tool

import (
	"golang.org/x/oauth2"
)

// Client contains shared resources that tools can use
type Client struct {
	// GoogleToken authorizes Google Workspace tools; nil disables them
	GoogleToken oauth2.TokenSource
}
