package commands

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"

	"github.com/fluxnet/fluxnet/src/crypto/keys"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	pubKeyFile            string
	keygenStdout          bool
	defaultPrivateKeyFile = filepath.Join(_config.Node.DataDir, "priv_key")
	defaultPublicKeyFile  = filepath.Join(_config.Node.DataDir, "key.pub")
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", defaultPublicKeyFile, "File where the public key will be written")
	cmd.Flags().BoolVar(&keygenStdout, "stdout", false, "Print the WIF private key and the public key instead of writing files")
}

func keygen(cmd *cobra.Command, args []string) error {
	key, err := keys.GenerateKey()
	if err != nil {
		return fmt.Errorf("Error generating secp256k1 key: %s", err)
	}

	pub := keys.NewKeyIdentity(key).PublicKeyHex(key)

	if keygenStdout {
		wif, err := keys.EncodeWIF(key)
		if err != nil {
			return fmt.Errorf("Encoding private key: %s", err)
		}
		fmt.Printf("PrivateKey: %s\n", wif)
		fmt.Printf("PublicKey: %s\n", pub)
		return nil
	}

	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("A key already lives under: %s", path.Dir(privKeyFile))
	}

	if err := keys.NewSimpleKeyfile(privKeyFile).WriteKey(key); err != nil {
		return fmt.Errorf("Writing private key: %s", err)
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)

	if err := os.MkdirAll(path.Dir(pubKeyFile), 0700); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	if err := ioutil.WriteFile(pubKeyFile, []byte(pub), 0600); err != nil {
		return fmt.Errorf("Writing public key: %s", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)
	fmt.Printf("PublicKey: %s\n", pub)

	return nil
}
