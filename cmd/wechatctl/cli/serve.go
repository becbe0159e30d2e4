package cli

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tidewave/wechatgo/pkg/webhook"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a webhook endpoint that echoes text messages",
		Long: `Start an HTTP server implementing the platform's callback protocol:
URL verification on GET, message delivery on POST. Text messages are echoed
back; payloads that fail verification or decryption are rejected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	return cmd
}

func runServe() error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}

	client, err := newClient(config)
	if err != nil {
		return err
	}

	receiver, err := webhook.NewReceiver(config.Token, client.Crypto())
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName: "wechatctl",
	})

	app.Use(logger.New())

	app.Get("/wechat", func(c fiber.Ctx) error {
		echo, err := receiver.VerifyURL(envelopeFromQuery(c))
		if err != nil {
			log.Warn().Err(err).Msg("URL verification failed")
			return c.SendStatus(fiber.StatusForbidden)
		}

		return c.SendString(echo)
	})

	app.Post("/wechat", func(c fiber.Ctx) error {
		env := envelopeFromQuery(c)

		inbound, err := receiver.Parse(env, c.Body())
		if err != nil {
			log.Warn().Err(err).Msg("rejected webhook payload")
			return c.SendStatus(fiber.StatusBadRequest)
		}

		msg := inbound.Message
		log.Info().
			Str("type", string(msg.MsgType)).
			Str("from", msg.FromUser).
			Msg("received message")

		if msg.MsgType != webhook.MessageTypeText {
			// empty body tells the platform not to retry
			return c.SendString("")
		}

		reply, err := webhook.RenderReply(webhook.NewTextReply(msg, msg.Content))
		if err != nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}

		if inbound.Mode == webhook.ModeEncrypted {
			reply, err = receiver.EncryptReply(reply, env.Timestamp, env.Nonce)
			if err != nil {
				return c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
		return c.SendString(reply)
	})

	log.Info().Str("address", config.HTTPAddress).Msg("starting webhook server")

	return app.Listen(config.HTTPAddress)
}

func envelopeFromQuery(c fiber.Ctx) webhook.Envelope {
	return webhook.Envelope{
		Signature:    c.Query("signature"),
		Timestamp:    c.Query("timestamp"),
		Nonce:        c.Query("nonce"),
		MsgSignature: c.Query("msg_signature"),
		EchoStr:      c.Query("echostr"),
	}
}
