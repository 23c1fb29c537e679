package crypto

import "testing"

func TestGenerateKeyPairProducesVerifiableSignature(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	msg := []byte("vote payload")
	sig := Sign(kp.PrivateKey, msg)

	if !Verify(kp.PublicKey, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
	if Verify(kp.PublicKey, []byte("tampered"), sig) {
		t.Fatalf("expected signature over different message to fail")
	}
}

func TestAddressOfIsDeterministic(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}

	a1 := AddressOf(kp.PublicKey)
	a2 := AddressOf(kp.PublicKey)
	if a1 != a2 {
		t.Fatalf("expected AddressOf to be deterministic")
	}
	if a1 != kp.Address() {
		t.Fatalf("expected KeyPair.Address to match AddressOf")
	}
}

func TestAddressOfDiffersAcrossKeys(t *testing.T) {
	kp1, _ := GenerateKeyPair()
	kp2, _ := GenerateKeyPair()
	if AddressOf(kp1.PublicKey) == AddressOf(kp2.PublicKey) {
		t.Fatalf("expected distinct keys to derive distinct addresses (overwhelmingly likely)")
	}
}
