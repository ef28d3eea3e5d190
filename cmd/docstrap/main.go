package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/xpertslabs/docstrap/internal/bootstrap"
	"github.com/xpertslabs/docstrap/internal/prompts"
)

func main() {
	app := &cli.App{
		Name:  "docstrap",
		Usage: "Bootstrap docs-platform infrastructure: Azure state storage, repositories, secrets, and CI",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Accept every prompt's default answer (non-interactive mode)",
			},
		},
		Before: func(c *cli.Context) error {
			prompts.AssumeYes = c.Bool("yes")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Run the full bootstrap (main command)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "Path to the JSON manifest",
						Value: "manifest.json",
					},
					&cli.BoolFlag{
						Name:  "skip-trigger",
						Usage: "Skip triggering the docs-build workflow at the end",
					},
				},
				Action: func(c *cli.Context) error {
					return bootstrap.Run(context.Background(), bootstrap.Options{
						ManifestPath: c.String("manifest"),
						SkipTrigger:  c.Bool("skip-trigger"),
					})
				},
			},
			{
				Name:  "render",
				Usage: "Render the docs-build workflow to stdout or a file without touching any external system",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "Path to the JSON manifest",
						Value: "manifest.json",
					},
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Repository owner used in clone URLs",
						Value: "",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Output file path (default: stdout)",
					},
				},
				Action: renderCommand,
			},
			{
				Name:  "status",
				Usage: "Show a read-only existence report for the project's resources",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "Path to the JSON manifest",
						Value: "manifest.json",
					},
				},
				Action: func(c *cli.Context) error {
					return bootstrap.Status(context.Background(), c.String("manifest"))
				},
			},
			{
				Name:   "help",
				Usage:  "Show detailed help and the expected manifest shape",
				Action: showDetailedHelp,
			},
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// showDetailedHelp provides comprehensive help including the manifest format
func showDetailedHelp(c *cli.Context) error {
	help := `
🎛️  docstrap - Docs Platform Infrastructure Bootstrap

BASIC USAGE:
  docstrap init --manifest manifest.json     # Full bootstrap (recommended)
  docstrap status --manifest manifest.json   # Read-only existence report
  docstrap render --manifest manifest.json   # Render the CI workflow only

MANIFEST FORMAT (JSON):
  {
    "PROJECT_NAME": "Xperts-Labs2",
    "LOCATION": "westeurope",
    "DEPLOYED": "true",
    "REPOS": ["hands-on-labs", "mkdocs"],
    "DOCS_BUILDER_REPO_NAME": "docs-builder",
    "THEME_REPO_NAME": "theme"
  }

WHAT init DOES (in order, each step idempotent):
  1. Azure login (device code when no ambient session) + subscription selection
  2. Resource group, storage account, and blob container for Terraform state
  3. Service principal with Contributor + User Access Administrator grants
  4. GitHub repositories (created after confirmation when missing)
  5. Per-repo ed25519 deploy keys under ~/.docstrap/keys (rotated on GitHub)
  6. Actions secrets/variables on the control repo and each managed repo
  7. Rendered docs-build workflow published via pull request, then triggered

ENVIRONMENT VARIABLES:
  GITHUB_TOKEN / GH_TOKEN   # GitHub token with repo + workflow scopes

FLAGS:
  --yes                     # Accept every prompt default (non-interactive)

Re-running init against existing infrastructure creates nothing twice:
every step checks for existence first, and secret writes overwrite.
`
	fmt.Print(help)
	return nil
}
