package cryptoutil

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/xerrors"
)

type publicKeyAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
}

// checkFunc verifies sig over message for one resolved public key.
type checkFunc func(message, sig []byte) error

// KMSVerifier checks detached document signatures made with an asymmetric
// KMS key. The public key is fetched once and verification runs locally.
type KMSVerifier struct {
	api   publicKeyAPI
	keyID string

	// AllowPKCS1v15 accepts RSA PKCS#1 v1.5 signatures as well as PSS.
	AllowPKCS1v15 bool

	mu    sync.Mutex
	pub   crypto.PublicKey
	check checkFunc
}

func NewKMSVerifier(client *kms.Client, keyID string) *KMSVerifier {
	return &KMSVerifier{api: client, keyID: keyID}
}

// PublicKey returns the signing key, calling KMS only until a fetch succeeds.
func (v *KMSVerifier) PublicKey(ctx context.Context) (crypto.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.resolveLocked(ctx); err != nil {
		return nil, err
	}
	return v.pub, nil
}

func (v *KMSVerifier) resolveLocked(ctx context.Context) error {
	if v.check != nil {
		return nil
	}
	if v.pub == nil {
		pub, err := v.fetch(ctx)
		if err != nil {
			return err
		}
		v.pub = pub
	}
	check, err := checkerFor(v.pub, v.AllowPKCS1v15)
	if err != nil {
		return err
	}
	v.check = check
	return nil
}

func (v *KMSVerifier) fetch(ctx context.Context) (crypto.PublicKey, error) {
	if v.api == nil {
		return nil, xerrors.New("kms: no client configured")
	}
	out, err := v.api.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(v.keyID)})
	if err != nil {
		return nil, xerrors.Wrapf(err, "kms: get public key %s", v.keyID)
	}
	if out.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return nil, xerrors.Newf("kms: key %s is for %s, not SIGN_VERIFY", v.keyID, out.KeyUsage)
	}
	pub, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, xerrors.Wrap(err, "kms: parse public key")
	}
	return pub, nil
}

// VerifySignature checks signature over message. signature may be the raw
// DER/PSS bytes or the base64 text printed by `aws kms sign`.
//
// The digest follows the key: SHA-384 for P-384 and SHA-256 for P-256 and RSA.
func (v *KMSVerifier) VerifySignature(ctx context.Context, message, signature []byte) error {
	v.mu.Lock()
	err := v.resolveLocked(ctx)
	check := v.check
	v.mu.Unlock()
	if err != nil {
		return err
	}
	return check(message, unarmor(signature))
}

func checkerFor(pub crypto.PublicKey, pkcs1 bool) (checkFunc, error) {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		return ecdsaChecker(key)
	case *rsa.PublicKey:
		return rsaChecker(key, pkcs1), nil
	}
	return nil, xerrors.Newf("kms: unsupported public key type %T", pub)
}

func ecdsaChecker(key *ecdsa.PublicKey) (checkFunc, error) {
	var sum func([]byte) []byte
	switch key.Curve {
	case elliptic.P256():
		sum = func(m []byte) []byte { d := sha256.Sum256(m); return d[:] }
	case elliptic.P384():
		sum = func(m []byte) []byte { d := sha512.Sum384(m); return d[:] }
	default:
		return nil, xerrors.Newf("kms: unsupported curve %s", key.Curve.Params().Name)
	}
	curve := key.Curve.Params().Name
	return func(message, sig []byte) error {
		if !ecdsa.VerifyASN1(key, sum(message), sig) {
			return xerrors.Newf("signature does not verify (ECDSA %s)", curve)
		}
		return nil
	}, nil
}

func rsaChecker(key *rsa.PublicKey, pkcs1 bool) checkFunc {
	return func(message, sig []byte) error {
		d := sha256.Sum256(message)
		err := rsa.VerifyPSS(key, crypto.SHA256, d[:], sig, nil)
		if err == nil {
			return nil
		}
		if pkcs1 && rsa.VerifyPKCS1v15(key, crypto.SHA256, d[:], sig) == nil {
			return nil
		}
		return xerrors.Wrap(err, "signature does not verify (RSA-PSS)")
	}
}

// unarmor decodes base64 text and passes anything else through untouched.
func unarmor(sig []byte) []byte {
	text := bytes.TrimSpace(sig)
	if len(text) == 0 || len(text)%4 != 0 {
		return sig
	}
	out, err := base64.StdEncoding.AppendDecode(nil, text)
	if err != nil {
		return sig
	}
	return out
}
