package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestLoadTLSConfigServerOnly(t *testing.T) {
	_, _, ca := generateCert(t)
	tlsCfg, err := Config{UseTLS: true, CABundle: ca}.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) != 0 {
		t.Fatalf("unexpected client certificate")
	}
	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error without ca bundle")
	}
}

func TestSetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	if !strings.HasPrefix(c.ClientID, "peakmpc-") {
		t.Fatalf("client id %q", c.ClientID)
	}
	if c.TopicPrefix != "peakmpc" || c.MaxRetries != 3 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected missing broker error")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p", LWTTopic: "lwt", LWTPayload: "bye"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
	if !opts.WillEnabled || opts.WillTopic != "lwt" || string(opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
}

func TestPublishQoSAndTopic(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", QoS: 1, TopicPrefix: "lab/"})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	topic := p.Topic("scenario", "household", "Paris")
	if topic != "lab/scenario/household/Paris" {
		t.Fatalf("topic %s", topic)
	}
	if err := p.Publish(topic, []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].qos != 1 || mc.published[0].topic != topic {
		t.Fatalf("unexpected publishes %+v", mc.published)
	}
}

func TestPublishRetries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := p.Publish("t", []byte("x")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected one retry, got %d publishes", len(mc.published))
	}
}

func TestPublishGivesUp(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	withMock(t, mc)
	p, err := NewPublisher(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := p.Publish("t", []byte("x")); err == nil {
		t.Fatalf("expected error")
	}
	p.Disconnect()
	if mc.connected {
		t.Fatalf("still connected")
	}
	if err := p.Publish("t", nil); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts      *paho.ClientOptions
	connected bool
	published []struct {
		topic string
		qos   byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) Connect() paho.Token {
	m.connected = true
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.connected = false }
func (m *mockClient) Publish(topic string, qos byte, _ bool, _ interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic string
		qos   byte
	}{topic, qos})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }
