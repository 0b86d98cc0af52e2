// Package cat provides the "cat" command, which prints one managed
// entry's fully-processed content without writing anything.
package cat

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guisu-dev/guisu/cmd"
	"github.com/guisu-dev/guisu/internal/logger"
	"github.com/guisu-dev/guisu/internal/source"
)

var catCmd = &cobra.Command{
	Use:   "cat <destination-path>",
	Short: "Print a managed entry's processed content",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		log := logger.With("command", "cat")

		raw, err := c.Flags().GetBool("raw")
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
			return fmt.Errorf("%s is not managed by the source tree", rel.String())
		}
		if se.Kind != source.KindFile {
			return fmt.Errorf("%s is not a file", rel.String())
		}

		sourceAbs := sess.SourceDir.Join(se.SourcePath.ToRel())
		data, err := os.ReadFile(sourceAbs.String())
		if err != nil {
			log.Error("Failed to read source entry", "error", err)
			return err
		}

		if !raw {
			processed, err := sess.Pipeline.Process(data, se.Attributes, sess.Variables, se.SourcePath.String())
			if err != nil {
				log.Error("Failed to process entry", "error", err)
				return err
			}
			fmt.Fprint(c.OutOrStdout(), string(processed))
			return nil
		}

		// --raw still decrypts and renders, the same as a normal apply pass
		// would, but skips inline-secret expansion, so a user can inspect
		// exactly what's committed to the source tree for each token.
		if se.Attributes.Encrypted {
			plain, err := sess.Pipeline.Decryptor.Decrypt(data)
			if err != nil {
				log.Error("Failed to decrypt entry", "error", err)
				return err
			}
			data = plain
		}
		if se.Attributes.Template && !looksBinary(data) {
			rendered, err := sess.Pipeline.Renderer.Render(string(data), sess.Variables)
			if err != nil {
				log.Error("Failed to render entry", "error", err)
				return err
			}
			data = []byte(rendered)
		}
		fmt.Fprint(c.OutOrStdout(), string(data))
		return nil
	},
}

func looksBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(data[:n], 0) != -1
}

func init() {
	catCmd.Flags().Bool("raw", false, "Print content with inline secret tokens left undecrypted")
	cmd.Register(catCmd)
}
