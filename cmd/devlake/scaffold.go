package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// projectConfig is the devlake.yaml written by `devlake init`.
const projectConfig = `project_name: %s
version: 0.1.0
default_engine: local
local_storage: .devlake/data
`

const gitignore = `# devlake local state
.devlake/

# Output
/data/
/output/
`

// quickstartPipeline is a runnable sample against a public dataset.
const quickstartPipeline = `name: quickstart
version: "1"
triggers:
  - schedule: manual
steps:
  - load:
      csv: https://raw.githubusercontent.com/datasets/airport-codes/master/data/airport-codes.csv
      alias: airports

  - transform:
      sql: SELECT iso_country, COUNT(*) AS airport_count FROM airports GROUP BY iso_country ORDER BY 2 DESC
      output_alias: country_counts

  - save:
      parquet: output/country_counts.parquet

tests:
  - assert_no_null: iso_country
`

// cmdInit scaffolds a new devlake project directory: pipelines/, src/,
// tests/, local state under .devlake/, a project config, a .gitignore, and a
// quickstart pipeline.
func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	project := fs.String("project", "", "directory to create the project in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *project == "" {
		return errors.New("init: -project is required")
	}
	if _, err := os.Stat(*project); err == nil {
		return fmt.Errorf("init: directory %q already exists", *project)
	}

	for _, d := range []string{
		"pipelines",
		"src",
		"tests",
		".devlake",
		filepath.Join(".github", "workflows"),
	} {
		if err := os.MkdirAll(filepath.Join(*project, d), 0o755); err != nil {
			return fmt.Errorf("init: create %s: %w", d, err)
		}
	}

	files := map[string]string{
		"devlake.yaml": fmt.Sprintf(projectConfig, filepath.Base(*project)),
		".gitignore":   gitignore,
		filepath.Join("pipelines", "quickstart.yaml"): quickstartPipeline,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(*project, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("init: write %s: %w", name, err)
		}
	}

	fmt.Printf("initialized devlake project in %s\n", *project)
	fmt.Println("next: devlake run -project", *project, "-pipeline", filepath.Join(*project, "pipelines", "quickstart.yaml"))
	return nil
}
