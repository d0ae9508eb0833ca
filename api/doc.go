/*
Package api holds the types shared by the templatizer server and its clients.

  - HTTPServerConfig configures the listener, metrics and drain behaviour
  - DeliveryResponse is the JSON summary returned for every webhook delivery
  - ConfigProvider and WebhookSender describe the read-only config API and
    delivery replay, implemented over HTTP by the clients subpackage

The webhook header names are defined here so both sides agree on them.
*/
package api
