package keys

import (
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "fluxnet")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	simpleKeyfile := NewSimpleKeyfile(path.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	// Initialize a key and try a write
	key, _ = GenerateKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should get key
	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if PrivateKeyHex(nKey) != PrivateKeyHex(key) || nKey.Compressed != key.Compressed {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir, err := ioutil.TempDir("", "fluxnet")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	key, _ := GenerateKey()
	rawKey := PrivateKeyHex(key)

	badKeyPath := path.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
		0477, 0466, 0444,
	}

	for _, fm := range shouldErr {
		ioutil.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		badKeyFile := NewSimpleKeyfile(badKeyPath)

		if _, err := badKeyFile.ReadKey(); err == nil {
			t.Fatalf("%o || badKeyFile should return permissions error", fm)
		}
	}

	goodKeyPath := path.Join(dir, "priv_key_good")

	shouldNotErr := []os.FileMode{
		0700, 0600, 0500, 0400,
	}

	for _, fm := range shouldNotErr {
		os.Remove(goodKeyPath)
		ioutil.WriteFile(goodKeyPath, []byte(rawKey), fm)

		goodKeyFile := NewSimpleKeyfile(goodKeyPath)

		if _, err := goodKeyFile.ReadKey(); err != nil {
			t.Fatalf("%o || goodKeyFile should not return error. Got %v", fm, err)
		}
	}
}

func TestDecodeWIF(t *testing.T) {
	key, err := ParseKeyString("5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ")
	if err != nil {
		t.Fatal(err)
	}
	if key.Compressed {
		t.Fatalf("uncompressed WIF decoded as compressed")
	}
	want := "0c28fca386c7a227600b2fe50b7cae11ec86d3bf1fbe471be89827e19d72aa1d"
	if got := PrivateKeyHex(key); got != want {
		t.Fatalf("private key: got %s, want %s", got, want)
	}
	if n := len(PublicKeyHex(key.PublicKey(), key.Compressed)); n != 130 {
		t.Fatalf("uncompressed public key hex should be 130 chars, got %d", n)
	}
}

func TestParseKeyStringHex(t *testing.T) {
	key, _ := GenerateKey()

	parsed, err := ParseKeyString(PrivateKeyHex(key))
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Compressed {
		t.Fatalf("raw keys should default to compressed")
	}
	if n := len(PublicKeyHex(parsed.PublicKey(), parsed.Compressed)); n != 66 {
		t.Fatalf("compressed public key hex should be 66 chars, got %d", n)
	}

	if _, err := ParseKeyString("not a key"); err == nil {
		t.Fatalf("garbage should not parse")
	}
	if _, err := ParseKeyString(strings.Repeat("00", 32)); err == nil {
		t.Fatalf("zero key should not parse")
	}
}

func TestSignVerifyMessage(t *testing.T) {
	for _, compressed := range []bool{true, false} {
		key, _ := GenerateKey()
		key.Compressed = compressed
		pub := PublicKeyHex(key.PublicKey(), compressed)

		msg := "Hello ZelFlux"
		sig, err := SignMessage(key, msg)
		if err != nil {
			t.Fatal(err)
		}

		if !VerifyMessage(msg, pub, sig) {
			t.Fatalf("compressed=%v: valid signature rejected", compressed)
		}
		if VerifyMessage(msg+"!", pub, sig) {
			t.Fatalf("compressed=%v: signature accepted for another message", compressed)
		}

		other, _ := GenerateKey()
		if VerifyMessage(msg, PublicKeyHex(other.PublicKey(), true), sig) {
			t.Fatalf("compressed=%v: signature accepted for another key", compressed)
		}
		if VerifyMessage(msg, pub, "@@@") {
			t.Fatalf("compressed=%v: garbage signature accepted", compressed)
		}
	}
}

func TestKeyIdentityOverride(t *testing.T) {
	def, _ := GenerateKey()
	override, _ := GenerateKey()

	id := NewKeyIdentity(def)

	k, err := id.PrivateKey("")
	if err != nil {
		t.Fatal(err)
	}
	if id.PublicKeyHex(k) != id.PublicKeyHex(def) {
		t.Fatalf("default key not returned")
	}

	wif, _ := EncodeWIF(override)
	k, err = id.PrivateKey(wif)
	if err != nil {
		t.Fatal(err)
	}
	if id.PublicKeyHex(k) != id.PublicKeyHex(override) {
		t.Fatalf("override key not returned")
	}

	if _, err := NewKeyIdentityFromString("").PrivateKey(""); err == nil {
		t.Fatalf("empty identity should fail")
	}
}
