package keypool

import "testing"

func benchmarkPayload(n int) []byte {
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	return payload
}

func benchmarkEncrypt(b *testing.B, size int) {
	c := testCipher(b, "aes-256-cbc")
	payload := benchmarkPayload(size)

	b.SetBytes(int64(size))
	b.ReportAllocs()
	for b.Loop() {
		if _, err := c.Encrypt(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkDecrypt(b *testing.B, size int) {
	c := testCipher(b, "aes-256-cbc")
	envelope, err := c.Encrypt(benchmarkPayload(size))
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(size))
	b.ReportAllocs()
	for b.Loop() {
		if _, err := c.Decrypt(envelope); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncrypt1KB(b *testing.B)  { benchmarkEncrypt(b, 1024) }
func BenchmarkDecrypt1KB(b *testing.B)  { benchmarkDecrypt(b, 1024) }
func BenchmarkEncrypt64KB(b *testing.B) { benchmarkEncrypt(b, 64*1024) }
func BenchmarkDecrypt64KB(b *testing.B) { benchmarkDecrypt(b, 64*1024) }
func BenchmarkEncrypt1MB(b *testing.B)  { benchmarkEncrypt(b, 1024*1024) }
func BenchmarkDecrypt1MB(b *testing.B)  { benchmarkDecrypt(b, 1024*1024) }

func BenchmarkDeriveKeyAndIV(b *testing.B) {
	p := testPool(b)

	b.ReportAllocs()
	for b.Loop() {
		m, err := p.DeriveKeyAndIV("aes-256-cbc", 16)
		if err != nil {
			b.Fatal(err)
		}
		m.Wipe()
	}
}
