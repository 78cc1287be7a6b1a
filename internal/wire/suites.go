package wire

// CipherSuite and EllipticCurve use the numeric wire codes from the
// original implementation's constants (libs/fscp/src/constants.cpp),
// kept so wire traces stay recognizable against the original protocol.
type CipherSuite uint8

const (
	CipherSuiteUnsupported              CipherSuite = 0x00
	CipherSuiteECDHE_RSA_AES128_GCM_SHA256 CipherSuite = 0x01
	CipherSuiteECDHE_RSA_AES256_GCM_SHA384 CipherSuite = 0x02
)

func (c CipherSuite) String() string {
	switch c {
	case CipherSuiteECDHE_RSA_AES128_GCM_SHA256:
		return "ecdhe_rsa_aes128_gcm_sha256"
	case CipherSuiteECDHE_RSA_AES256_GCM_SHA384:
		return "ecdhe_rsa_aes256_gcm_sha384"
	default:
		return "unsupported"
	}
}

type EllipticCurve uint8

const (
	CurveUnsupported EllipticCurve = 0x00
	CurveSect571k1   EllipticCurve = 0x01
	CurveSecp384r1   EllipticCurve = 0x02
	CurveSecp521r1   EllipticCurve = 0x03
)

func (c EllipticCurve) String() string {
	switch c {
	case CurveSect571k1:
		return "sect571k1"
	case CurveSecp384r1:
		return "secp384r1"
	case CurveSecp521r1:
		return "secp521r1"
	default:
		return "unsupported"
	}
}
