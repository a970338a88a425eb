package witness

import (
	"bytes"

	"github.com/consensys/gnark/backend/groth16"
	gnarkwitness "github.com/consensys/gnark/backend/witness"
)

// marshalProof and friends wrap gnark's io.WriterTo/io.ReaderFrom proof
// and witness types in plain []byte, the shape pkg/shielded hands to the
// relayer and pool call encoders in internal/adapters.

func marshalProof(p groth16.Proof) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalProof(p groth16.Proof, data []byte) error {
	_, err := p.ReadFrom(bytes.NewReader(data))
	return err
}

func marshalWitness(w gnarkwitness.Witness) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalWitness(w gnarkwitness.Witness, data []byte) error {
	_, err := w.ReadFrom(bytes.NewReader(data))
	return err
}
