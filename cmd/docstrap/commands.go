package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/xpertslabs/docstrap/internal/models"
	"github.com/xpertslabs/docstrap/internal/workflow"
)

// renderCommand renders the workflow template for the manifest's repository
// list without contacting Azure or GitHub.
func renderCommand(c *cli.Context) error {
	m, err := models.LoadManifest(c.String("manifest"))
	if err != nil {
		return err
	}

	owner := c.String("owner")
	if owner == "" {
		owner = "OWNER"
	}

	rendered, err := workflow.Render(workflow.DefaultTemplate(), owner, m.Repos)
	if err != nil {
		return err
	}

	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("📝 Rendered workflow written to %s\n", out)
		return nil
	}
	fmt.Print(rendered)
	return nil
}
