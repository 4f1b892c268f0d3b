// Package ciannotate surfaces errors and step outputs to the hosting CI
// platform: inline ::error:: annotations and GITHUB_OUTPUT values on
// GitHub Actions, a plain colored stderr line elsewhere.
package ciannotate

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/determinatesystems/flakehub-push/pkg/domain/model"
)

// Annotate emits a single-line error annotation for the environment.
func Annotate(env model.ExecutionEnvironment, message string) {
	message = strings.ReplaceAll(message, "\n", " ")
	if env == model.EnvironmentGitHub {
		fmt.Fprintf(os.Stdout, "::error::%s\n", message)
		return
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "error: %s\n", message)
}

// SetOutput appends a step output in the GITHUB_OUTPUT heredoc format.
// Values may span multiple lines; a random delimiter guards against
// injection through the value.
func SetOutput(name, value string) error {
	outputPath, ok := os.LookupEnv("GITHUB_OUTPUT")
	if !ok {
		return goerr.New("the GITHUB_OUTPUT environment variable is unset")
	}

	payload, err := escapeKeyValue(name, value)
	if err != nil {
		return err
	}

	fh, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return goerr.Wrap(err, "failed to open the GITHUB_OUTPUT file", goerr.V("path", outputPath))
	}
	defer fh.Close()

	if _, err := fh.WriteString(payload); err != nil {
		return goerr.Wrap(err, "failed to write to the GITHUB_OUTPUT file", goerr.V("path", outputPath))
	}
	return nil
}

func escapeKeyValue(key, value string) (string, error) {
	delimiter := "ghadelimiter_" + uuid.NewString()

	if strings.Contains(key, delimiter) {
		return "", goerr.New("key contains delimiter")
	}
	if strings.Contains(value, delimiter) {
		return "", goerr.New("value contains delimiter")
	}

	return fmt.Sprintf("%s<<%s\n%s\n%s\n", key, delimiter, value, delimiter), nil
}
