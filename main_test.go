package main

import (
	"bytes"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/freekieb7/webapi/test"
)

func TestFetchCommand(t *testing.T) {
	upstream := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Write(bytes.ToUpper(b))
	}))
	defer upstream.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"fetch", "--upstream.url", upstream.URL + "/web_api"})
	defer rootCmd.SetArgs(nil)

	test.AssertNoError(t, rootCmd.Execute())
	test.AssertTrue(t, "before: 'i am a lower case string'\nafter: 'I AM A LOWER CASE STRING'\n", out.String())
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"serve", "--addr", ""})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected serve to fail on an empty address")
	}
}
