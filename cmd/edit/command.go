// Package edit provides the "edit" command, which opens a managed
// entry's decrypted source content in $EDITOR and re-encrypts it on save.
package edit

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/adapters/crypto"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/source"
)

var editCmd = &cobra.Command{
	Use:   "edit <destination-path>",
	Short: "Edit a managed entry's decrypted source content",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "edit")

		recipients, err := c.Flags().GetStringArray("recipient")
		if err != nil {
			return err
		}

		sess, err := cmd.OpenSession()
		if err != nil {
			log.Error("Failed to open session", "error", err)
			return err
		}
		defer sess.Close()

		rel, err := cmd.RelativeToDest(sess.DestDir, args[0])
		if err != nil {
			return err
		}

		entries, err := sess.ReadSource()
		if err != nil {
			log.Error("Failed to read source tree", "error", err)
			return err
		}
		se, ok := entries[rel]
		if !ok {
			return fmt.Errorf("%s is not managed; run \"guisu add\" first", rel.String())
		}
		if se.Kind != source.KindFile {
			return fmt.Errorf("%s is not a file", rel.String())
		}

		sourceAbs := sess.SourceDir.Join(se.SourcePath.ToRel())
		info, err := os.Stat(sourceAbs.String())
		if err != nil {
			log.Error("Failed to stat source entry", "error", err)
			return err
		}

		raw, err := os.ReadFile(sourceAbs.String())
		if err != nil {
			log.Error("Failed to read source entry", "error", err)
			return err
		}

		plaintext := raw
		if se.Attributes.Encrypted {
			plaintext, err = sess.Pipeline.Decryptor.Decrypt(raw)
			if err != nil {
				log.Error("Failed to decrypt source entry", "error", err)
				return err
			}
		}

		edited, err := editInEditor(plaintext, se.SourcePath.FileName())
		if err != nil {
			log.Error("Editor invocation failed", "error", err)
			return err
		}

		if bytes.Equal(edited, plaintext) {
			fmt.Fprintln(c.OutOrStdout(), "no changes")
			return nil
		}

		final := edited
		if se.Attributes.Encrypted {
			if len(recipients) == 0 {
				return fmt.Errorf("re-encrypting %s requires at least one --recipient", rel.String())
			}
			enc, err := crypto.LoadRecipients(recipients)
			if err != nil {
				return fmt.Errorf("loading recipients: %w", err)
			}
			final, err = enc.Encrypt(edited)
			if err != nil {
				return fmt.Errorf("re-encrypting %s: %w", rel.String(), err)
			}
		}

		if err := os.WriteFile(sourceAbs.String(), final, info.Mode().Perm()); err != nil {
			log.Error("Failed to write source entry", "error", err)
			return err
		}

		fmt.Fprintf(c.OutOrStdout(), "updated %s\n", rel.String())
		return nil
	},
}

// editInEditor writes plaintext to a scratch file, runs $EDITOR against
// it, and returns the file's content after the editor exits. suffix names
// the scratch file after the source entry so an editor that picks syntax
// highlighting by extension still gets it right.
func editInEditor(plaintext []byte, suffix string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "guisu-edit-*-"+suffix)
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(plaintext); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	args := append(parts[1:], tmpPath)

	c := exec.Command(parts[0], args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %w", editor, err)
	}

	return os.ReadFile(tmpPath)
}

func init() {
	editCmd.Flags().StringArray("recipient", nil, "Age recipient (public key) to re-encrypt for; repeatable, required when editing an encrypted entry")
	cmd.Register(editCmd)
}
