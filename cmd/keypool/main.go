package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	keypool "github.com/rbaliyan/config-keypool"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `short:"c" type:"path" help:"Path to a YAML config file."`
	Keyset    string `type:"path" help:"Path to the YAML key set."`
	Algorithm string `help:"Cipher algorithm, e.g. aes-256-cbc."`
	Store     string `type:"path" help:"Path to the sealed store directory."`
	EnvFile   string `type:"path" help:"Load environment overrides from this file."`
	Verbose   bool   `short:"v" help:"Log debug output to stderr."`
}

type cli struct {
	Globals

	Generate   generateCmd   `cmd:"" help:"Generate a new key set."`
	Encrypt    encryptCmd    `cmd:"" help:"Seal a plaintext into an envelope."`
	Decrypt    decryptCmd    `cmd:"" help:"Open an envelope."`
	Inspect    inspectCmd    `cmd:"" help:"Show the header of an envelope without opening it."`
	Put        putCmd        `cmd:"" help:"Seal a value into the store."`
	Get        getCmd        `cmd:"" help:"Open a value from the store."`
	Delete     deleteCmd     `cmd:"" help:"Remove a value from the store."`
	List       listCmd       `cmd:"" help:"List the keys in the store."`
	Algorithms algorithmsCmd `cmd:"" help:"List the supported algorithms."`
}

// streams carries the process I/O so commands can be run against buffers.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	var cli cli

	ctx := kong.Parse(&cli,
		kong.Name("keypool"),
		kong.Description("Seal and open pooled-key envelopes."),
	)
	err := ctx.Run(&cli.Globals, &streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	ctx.FatalIfErrorf(err)
}

func newLogger(g *Globals, s *streams) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(s.err)
	log.SetLevel(logrus.WarnLevel)
	if g.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// openCipher resolves the configuration and builds a cipher over the key set.
// The caller must destroy the returned pool.
func openCipher(g *Globals, s *streams) (*keypool.Cipher, *settings, *logrus.Logger, error) {
	cfg, err := resolve(g)
	if err != nil {
		return nil, nil, nil, err
	}
	log := newLogger(g, s)

	pool, err := keypool.ReadKeySetFile(cfg.Keyset)
	if err != nil {
		return nil, nil, nil, err
	}

	c, err := keypool.New(cfg.Algorithm, pool, keypool.WithLogger(log))
	if err != nil {
		pool.Destroy()
		return nil, nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"algorithm": cfg.Algorithm,
		"entries":   pool.Size(),
	}).Debug("key set loaded")

	return c, cfg, log, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
