package cardnumber

// Protected holds an encrypted card number. The plaintext is only reachable through a Cipher,
// and the only rendering offered here is the masked one.
type Protected struct {
	ciphertext string
}

// NewProtected wraps a ciphertext produced by Cipher.Encrypt.
func NewProtected(ciphertext string) Protected {
	return Protected{ciphertext: ciphertext}
}

// Seal validates and encrypts a plaintext number.
func Seal(c Cipher, number string) (Protected, error) {
	normalized, err := Validate(number)
	if err != nil {
		return Protected{}, err
	}
	ct, err := c.Encrypt(normalized)
	if err != nil {
		return Protected{}, err
	}
	return Protected{ciphertext: ct}, nil
}

// Ciphertext returns the stored form.
func (p Protected) Ciphertext() string {
	return p.ciphertext
}

// Masked returns "**** **** **** 1234". An undecryptable value masks every digit.
func (p Protected) Masked(c Cipher) string {
	plain, err := c.Decrypt(p.ciphertext)
	if err != nil {
		return "**** **** **** ****"
	}
	return Mask(plain)
}

// Matches reports whether number is the value protected by p.
func (p Protected) Matches(c Cipher, number string) bool {
	plain, err := c.Decrypt(p.ciphertext)
	if err != nil {
		return false
	}
	return plain == Normalize(number)
}

// String never reveals the number.
func (p Protected) String() string {
	return "**** **** **** ****"
}
