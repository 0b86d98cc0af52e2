// Package add provides the "add" command, which copies an existing
// destination-side file or symlink into the managed source tree.
package add

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/adapters/crypto"
	"github.com/guisu-dev/guisu/internal/attr"
	"github.com/guisu-dev/guisu/internal/engine"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/path"
)

var addCmd = &cobra.Command{
	Use:   "add <destination-path>",
	Short: "Copy an existing destination file into the managed source tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "add")

		template, err := c.Flags().GetBool("template")
		if err != nil {
			return err
		}
		encrypt, err := c.Flags().GetBool("encrypt")
		if err != nil {
			return err
		}
		private, err := c.Flags().GetBool("private")
		if err != nil {
			return err
		}
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
		if _, already := entries[rel]; already {
			return fmt.Errorf("%s is already managed; use \"guisu edit\" to modify it", rel.String())
		}

		destAbs := sess.DestDir.Join(rel)
		info, err := os.Lstat(destAbs.String())
		if err != nil {
			log.Error("Failed to stat destination path", "error", err)
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			if template || encrypt {
				return fmt.Errorf("--template and --encrypt do not apply to symlinks")
			}
			if err := addSymlink(sess, rel, destAbs); err != nil {
				log.Error("Failed to add symlink", "error", err)
				return err
			}
		case info.IsDir():
			return fmt.Errorf("%s is a directory; add its entries individually", rel.String())
		default:
			if err := addFile(sess, rel, destAbs, info, template, encrypt, private, recipients); err != nil {
				log.Error("Failed to add file", "error", err)
				return err
			}
		}

		fmt.Fprintf(c.OutOrStdout(), "added %s\n", rel.String())
		return nil
	},
}

func addSymlink(sess *engine.Session, rel path.RelPath, destAbs path.AbsPath) error {
	linkTarget, err := os.Readlink(destAbs.String())
	if err != nil {
		return err
	}
	sourceAbs := sess.SourceDir.Join(rel)
	if err := os.MkdirAll(filepath.Dir(sourceAbs.String()), 0o755); err != nil {
		return err
	}
	return os.Symlink(linkTarget, sourceAbs.String())
}

func addFile(sess *engine.Session, rel path.RelPath, destAbs path.AbsPath, info os.FileInfo, template, encrypt, private bool, recipients []string) error {
	data, err := os.ReadFile(destAbs.String())
	if err != nil {
		return err
	}

	attrs := attr.FromMode(info.Mode())
	attrs.Private = attrs.Private || private
	attrs.Template = template
	attrs.Encrypted = encrypt

	if attrs.Encrypted {
		if len(recipients) == 0 {
			return fmt.Errorf("--encrypt requires at least one --recipient")
		}
		enc, err := crypto.LoadRecipients(recipients)
		if err != nil {
			return fmt.Errorf("loading recipients: %w", err)
		}
		data, err = enc.Encrypt(data)
		if err != nil {
			return fmt.Errorf("encrypting %s: %w", rel.String(), err)
		}
	}

	sourceName := rel.FileName()
	if attrs.Template {
		sourceName += ".j2"
	}
	if attrs.Encrypted {
		sourceName += ".age"
	}

	sourceRelStr := sourceName
	if parent, ok := rel.Parent(); ok {
		sourceRelStr = filepath.Join(parent.String(), sourceName)
	}
	sourceRel, err := path.NewRelPath(sourceRelStr)
	if err != nil {
		return err
	}
	sourceAbs := sess.SourceDir.Join(sourceRel)

	if err := os.MkdirAll(filepath.Dir(sourceAbs.String()), attrs.DirMode()); err != nil {
		return err
	}
	return os.WriteFile(sourceAbs.String(), data, attrs.FileMode())
}

func init() {
	addCmd.Flags().Bool("template", false, "Mark the added file as a template (.j2)")
	addCmd.Flags().Bool("encrypt", false, "Encrypt the added file for the given recipients (.age)")
	addCmd.Flags().Bool("private", false, "Force the private attribute regardless of the file's current mode")
	addCmd.Flags().StringArray("recipient", nil, "Age recipient (public key) to encrypt for; repeatable, required with --encrypt")
	cmd.Register(addCmd)
}
